package message

import "encoding/json"

// Request sub-tags sent by workflows and the response sub-tags they await.
// There is no schema negotiation; this closed set is the whole protocol.
const (
	OpValidateAPIKey    = "validateApiKey"
	OpAPIKeyValidated   = "apiKeyValidated"
	OpGetLights         = "getLights"
	OpLightsReceived    = "lightsReceived"
	OpGetLightState     = "getLightState"
	OpLightStateUpdate  = "lightStateReceived"
	OpSetLightState     = "setLightState"
	OpLightStateChanged = "lightStateChanged"
	OpGetGroups         = "getGroups"
	OpGroupsReceived    = "groupsReceived"
	OpSaveGroup         = "saveGroup"
	OpGroupSaved        = "groupSaved"
	OpDeleteGroup       = "deleteGroup"
	OpGroupDeleted      = "groupDeleted"
)

// OpError is the generic failure sub-tag some counterparts send instead of
// the expected response sub-tag, carrying the reason in a message field.
const OpError = "error"

// RequestHeader is embedded at the top of every request payload.
type RequestHeader struct {
	Event         string `json:"event"`
	CorrelationID string `json:"correlationId,omitempty"`
}

// ResponseHeader is embedded at the top of every response payload.
type ResponseHeader struct {
	Event         string `json:"event"`
	CorrelationID string `json:"correlationId,omitempty"`
	Error         string `json:"error,omitempty"`
}

// Light describes one controllable device as reported by the control process.
type Light struct {
	DeviceID      string   `json:"deviceId"`
	Model         string   `json:"model"`
	Name          string   `json:"name"`
	Controllable  bool     `json:"controllable"`
	Retrievable   bool     `json:"retrievable"`
	SupportedCmds []string `json:"supportedCmds,omitempty"`
}

// LightState is the live state of one light.
type LightState struct {
	On         bool   `json:"on"`
	Brightness int    `json:"brightness,omitempty"`
	Color      string `json:"color,omitempty"`
}

// Group is a saved collection of lights addressed together.
type Group struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	LightIDs []string `json:"lightIds"`
}

// ValidateAPIKeyRequest asks the control process to validate a credential.
type ValidateAPIKeyRequest struct {
	RequestHeader
	APIKey string `json:"apiKey"`
}

// APIKeyValidatedResponse reports the validation outcome.
type APIKeyValidatedResponse struct {
	ResponseHeader
	IsValid bool `json:"isValid"`
}

// GetLightsRequest asks for the device list visible to a credential.
type GetLightsRequest struct {
	RequestHeader
	APIKey string `json:"apiKey"`
}

// LightsReceivedResponse carries the discovered device list.
type LightsReceivedResponse struct {
	ResponseHeader
	Lights []Light `json:"lights"`
}

// GetLightStateRequest asks for the live state of one light.
type GetLightStateRequest struct {
	RequestHeader
	DeviceID string `json:"deviceId"`
	Model    string `json:"model"`
}

// LightStateResponse carries live state for one light.
type LightStateResponse struct {
	ResponseHeader
	DeviceID string     `json:"deviceId"`
	State    LightState `json:"state"`
}

// SetLightStateRequest updates the state of one light.
type SetLightStateRequest struct {
	RequestHeader
	DeviceID string     `json:"deviceId"`
	Model    string     `json:"model"`
	State    LightState `json:"state"`
}

// GetGroupsRequest asks for the saved groups of a credential.
type GetGroupsRequest struct {
	RequestHeader
	APIKey string `json:"apiKey"`
}

// GroupsReceivedResponse carries the saved group list.
type GroupsReceivedResponse struct {
	ResponseHeader
	Groups []Group `json:"groups"`
}

// SaveGroupRequest creates or updates one group.
type SaveGroupRequest struct {
	RequestHeader
	Group Group `json:"group"`
}

// GroupSavedResponse acknowledges a save and returns the stored group.
type GroupSavedResponse struct {
	ResponseHeader
	Group Group `json:"group"`
}

// DeleteGroupRequest removes one group by id.
type DeleteGroupRequest struct {
	RequestHeader
	GroupID string `json:"groupId"`
}

// GroupDeletedResponse acknowledges a delete.
type GroupDeletedResponse struct {
	ResponseHeader
	GroupID string `json:"groupId"`
}

// RegistrationRequest is the one-time handshake sent right after the socket
// opens; the host supplies both fields at process start.
type RegistrationRequest struct {
	Event string `json:"event"`
	UUID  string `json:"uuid"`
}

// SettingsPayload is the shape of didReceiveSettings payloads mirrored into
// the channel's last-known-settings snapshot.
type SettingsPayload struct {
	Settings json.RawMessage `json:"settings"`
}
