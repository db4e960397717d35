package workflow

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/felixgeelhaar/govee-light-management-sub000/errors"
	"github.com/felixgeelhaar/govee-light-management-sub000/message"
	"github.com/felixgeelhaar/govee-light-management-sub000/notify"
)

// GroupsState is the group machine's state set.
type GroupsState int

const (
	// GroupsIdle means no group list has been loaded yet.
	GroupsIdle GroupsState = iota
	// GroupsLoading means a group list request is in flight.
	GroupsLoading
	// GroupsReady means the machine holds a group list.
	GroupsReady
	// GroupsEditing means a draft group is being composed.
	GroupsEditing
	// GroupsSaving means a save request is in flight.
	GroupsSaving
	// GroupsDeleting means a delete request is in flight.
	GroupsDeleting
	// GroupsFailed means the last operation failed.
	GroupsFailed
)

// String returns a human-readable state name.
func (s GroupsState) String() string {
	switch s {
	case GroupsIdle:
		return "idle"
	case GroupsLoading:
		return "loading"
	case GroupsReady:
		return "ready"
	case GroupsEditing:
		return "editing"
	case GroupsSaving:
		return "saving"
	case GroupsDeleting:
		return "deleting"
	case GroupsFailed:
		return "error"
	default:
		return "unknown"
	}
}

// groupsOp identifies the operation a failed machine retries.
type groupsOp int

const (
	groupsOpNone groupsOp = iota
	groupsOpLoad
	groupsOpSave
	groupsOpDelete
)

// Groups manages saved light groups: loading the list, composing a
// draft, and the save and delete round trips.
type Groups struct {
	mu sync.Mutex
	base

	deps       Deps
	correlator *Correlator
	logger     *slog.Logger
	ctxID      string

	state  GroupsState
	apiKey string
	groups []message.Group

	draft     message.Group
	selection map[string]struct{}

	lastOp        groupsOp
	lastDeletedID string
}

// NewGroups creates a group machine in the idle state.
func NewGroups(deps Deps) *Groups {
	logger := deps.logger("groups")
	return &Groups{
		deps:       deps,
		correlator: NewCorrelator(deps.Bus, logger),
		logger:     logger,
		ctxID:      message.NewCorrelationID(),
		state:      GroupsIdle,
	}
}

// Load fetches the saved group list for apiKey, serving from cache when
// a fresh entry exists.
func (m *Groups) Load(ctx context.Context, apiKey string) error {
	m.mu.Lock()
	gen, err := m.begin("groups", "Load")
	if err != nil {
		m.mu.Unlock()
		return err
	}
	m.state = GroupsLoading
	m.apiKey = apiKey
	m.lastOp = groupsOpLoad
	m.mu.Unlock()

	if apiKey == "" {
		return m.settleFailure(gen,
			errors.WrapInvalid(errors.ErrMissingAPIKey, "groups", "Load", "validate input"))
	}

	if m.deps.Cache != nil {
		if groups, ok := m.deps.Cache.Groups(apiKey); ok {
			m.logger.Debug("group list served from cache", "count", len(groups))
			return m.settleGroups(gen, groups)
		}
	}

	var groups []message.Group
	op := func() error {
		fetched, err := m.fetch(ctx, apiKey)
		if err != nil {
			return err
		}
		groups = fetched
		return nil
	}
	if err := runWithRecovery(ctx, m.deps.Recovery, op); err != nil {
		return m.settleFailure(gen, err)
	}

	m.cacheGroups(apiKey, groups)
	return m.settleGroups(gen, groups)
}

// Edit enters the editing state with a fresh draft, or with an existing
// group's contents when id names one. Only valid from ready.
func (m *Groups) Edit(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != GroupsReady {
		return errors.WrapInvalid(errors.ErrInvalidData, "groups", "Edit",
			"edit outside ready state")
	}

	m.draft = message.Group{}
	m.selection = make(map[string]struct{})
	if id != "" {
		for _, g := range m.groups {
			if g.ID == id {
				m.draft = g
				for _, lightID := range g.LightIDs {
					m.selection[lightID] = struct{}{}
				}
				break
			}
		}
	}
	m.state = GroupsEditing
	return nil
}

// SetName sets the draft group's name.
func (m *Groups) SetName(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != GroupsEditing {
		return errors.WrapInvalid(errors.ErrInvalidData, "groups", "SetName",
			"no draft in progress")
	}
	m.draft.Name = name
	return nil
}

// ToggleLight adds lightID to the draft's selection, or removes it when
// already selected.
func (m *Groups) ToggleLight(lightID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != GroupsEditing {
		return errors.WrapInvalid(errors.ErrInvalidData, "groups", "ToggleLight",
			"no draft in progress")
	}
	if _, ok := m.selection[lightID]; ok {
		delete(m.selection, lightID)
	} else {
		m.selection[lightID] = struct{}{}
	}
	return nil
}

// Cancel abandons the draft and returns to ready.
func (m *Groups) Cancel() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != GroupsEditing {
		return errors.WrapInvalid(errors.ErrInvalidData, "groups", "Cancel",
			"no draft in progress")
	}
	m.draft = message.Group{}
	m.selection = nil
	m.state = GroupsReady
	return nil
}

// Save submits the draft. An empty name is rejected before any request
// leaves the machine.
func (m *Groups) Save(ctx context.Context) error {
	m.mu.Lock()
	if m.state != GroupsEditing {
		m.mu.Unlock()
		return errors.WrapInvalid(errors.ErrInvalidData, "groups", "Save",
			"no draft in progress")
	}
	gen, err := m.begin("groups", "Save")
	if err != nil {
		m.mu.Unlock()
		return err
	}

	group := m.draft
	group.LightIDs = make([]string, 0, len(m.selection))
	for lightID := range m.selection {
		group.LightIDs = append(group.LightIDs, lightID)
	}
	sort.Strings(group.LightIDs)

	m.state = GroupsSaving
	m.lastOp = groupsOpSave
	apiKey := m.apiKey
	m.mu.Unlock()

	if group.Name == "" {
		return m.settleFailure(gen,
			errors.WrapInvalid(errors.ErrEmptyGroupName, "groups", "Save", "validate draft"))
	}

	var saved message.Group
	op := func() error {
		stored, err := m.save(ctx, group)
		if err != nil {
			return err
		}
		saved = stored
		return nil
	}
	if err := runWithRecovery(ctx, m.deps.Recovery, op); err != nil {
		return m.settleFailure(gen, err)
	}

	if m.deps.Cache != nil && apiKey != "" {
		// The stored list changed under us; force the next load to
		// refetch.
		m.deps.Cache.InvalidateGroups(apiKey)
	}
	return m.settleSaved(gen, saved)
}

// Delete removes the group with the given id. Only valid from ready.
func (m *Groups) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	if m.state != GroupsReady {
		m.mu.Unlock()
		return errors.WrapInvalid(errors.ErrInvalidData, "groups", "Delete",
			"delete outside ready state")
	}
	gen, err := m.begin("groups", "Delete")
	if err != nil {
		m.mu.Unlock()
		return err
	}
	m.state = GroupsDeleting
	m.lastOp = groupsOpDelete
	m.lastDeletedID = id
	apiKey := m.apiKey
	m.mu.Unlock()

	op := func() error { return m.remove(ctx, id) }
	if err := runWithRecovery(ctx, m.deps.Recovery, op); err != nil {
		return m.settleFailure(gen, err)
	}

	if m.deps.Cache != nil && apiKey != "" {
		m.deps.Cache.InvalidateGroups(apiKey)
	}
	return m.settleDeleted(gen, id)
}

// Retry repeats the operation that failed. Only valid from the error
// state.
func (m *Groups) Retry(ctx context.Context) error {
	m.mu.Lock()
	if m.state != GroupsFailed {
		m.mu.Unlock()
		return errors.WrapInvalid(errors.ErrInvalidData, "groups", "Retry",
			"retry outside error state")
	}
	lastOp := m.lastOp
	apiKey := m.apiKey
	deletedID := m.lastDeletedID
	m.mu.Unlock()

	switch lastOp {
	case groupsOpLoad:
		return m.Load(ctx, apiKey)
	case groupsOpSave:
		m.mu.Lock()
		m.state = GroupsEditing
		m.mu.Unlock()
		return m.Save(ctx)
	case groupsOpDelete:
		m.mu.Lock()
		m.state = GroupsReady
		m.mu.Unlock()
		return m.Delete(ctx, deletedID)
	default:
		return errors.WrapInvalid(errors.ErrInvalidData, "groups", "Retry",
			"nothing to retry")
	}
}

// Reset discards any in-flight operation and returns to idle.
func (m *Groups) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.invalidate()
	m.state = GroupsIdle
	m.err = nil
	m.groups = nil
	m.draft = message.Group{}
	m.selection = nil
	m.lastOp = groupsOpNone
}

// Groups returns a copy of the held group list.
func (m *Groups) Groups() []message.Group {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]message.Group(nil), m.groups...)
}

// Draft returns the draft group with its current selection.
func (m *Groups) Draft() message.Group {
	m.mu.Lock()
	defer m.mu.Unlock()

	draft := m.draft
	draft.LightIDs = make([]string, 0, len(m.selection))
	for lightID := range m.selection {
		draft.LightIDs = append(draft.LightIDs, lightID)
	}
	sort.Strings(draft.LightIDs)
	return draft
}

// State returns the current machine state.
func (m *Groups) State() GroupsState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Err returns the error recorded by the last failed operation.
func (m *Groups) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

func (m *Groups) fetch(ctx context.Context, apiKey string) ([]message.Group, error) {
	req := message.GetGroupsRequest{
		RequestHeader: message.RequestHeader{
			Event:         message.OpGetGroups,
			CorrelationID: message.NewCorrelationID(),
		},
		APIKey: apiKey,
	}
	env, err := message.NewEnvelope(message.EventSendToPlugin, m.ctxID, req)
	if err != nil {
		return nil, err
	}

	resp, err := m.correlator.Request(ctx, env, message.OpGroupsReceived, m.deps.timeouts().Fetch)
	if err != nil {
		return nil, err
	}

	var payload message.GroupsReceivedResponse
	if err := resp.DecodePayload(&payload); err != nil {
		return nil, err
	}
	return payload.Groups, nil
}

func (m *Groups) save(ctx context.Context, group message.Group) (message.Group, error) {
	req := message.SaveGroupRequest{
		RequestHeader: message.RequestHeader{
			Event:         message.OpSaveGroup,
			CorrelationID: message.NewCorrelationID(),
		},
		Group: group,
	}
	env, err := message.NewEnvelope(message.EventSendToPlugin, m.ctxID, req)
	if err != nil {
		return message.Group{}, err
	}

	resp, err := m.correlator.Request(ctx, env, message.OpGroupSaved, m.deps.timeouts().Validate)
	if err != nil {
		return message.Group{}, err
	}

	var payload message.GroupSavedResponse
	if err := resp.DecodePayload(&payload); err != nil {
		return message.Group{}, err
	}
	return payload.Group, nil
}

func (m *Groups) remove(ctx context.Context, id string) error {
	req := message.DeleteGroupRequest{
		RequestHeader: message.RequestHeader{
			Event:         message.OpDeleteGroup,
			CorrelationID: message.NewCorrelationID(),
		},
		GroupID: id,
	}
	env, err := message.NewEnvelope(message.EventSendToPlugin, m.ctxID, req)
	if err != nil {
		return err
	}

	resp, err := m.correlator.Request(ctx, env, message.OpGroupDeleted, m.deps.timeouts().Validate)
	if err != nil {
		return err
	}

	var payload message.GroupDeletedResponse
	return resp.DecodePayload(&payload)
}

func (m *Groups) cacheGroups(apiKey string, groups []message.Group) {
	if m.deps.Cache == nil {
		return
	}
	if err := m.deps.Cache.SetGroups(apiKey, groups); err != nil {
		m.logger.Warn("group list cache write failed", "error", err.Error())
	}
}

func (m *Groups) settleGroups(gen uint64, groups []message.Group) error {
	m.mu.Lock()
	if m.stale(gen) {
		m.mu.Unlock()
		m.logger.Debug("stale group list discarded")
		return errors.WrapInvalid(errors.ErrStaleResponse, "groups", "Load", "apply result")
	}
	m.busy = false
	m.state = GroupsReady
	m.groups = groups
	m.mu.Unlock()

	m.logger.Info("group list loaded", "count", len(groups))
	return nil
}

func (m *Groups) settleSaved(gen uint64, saved message.Group) error {
	m.mu.Lock()
	if m.stale(gen) {
		m.mu.Unlock()
		m.logger.Debug("stale save result discarded")
		return errors.WrapInvalid(errors.ErrStaleResponse, "groups", "Save", "apply result")
	}
	m.busy = false
	replaced := false
	for i, g := range m.groups {
		if g.ID == saved.ID {
			m.groups[i] = saved
			replaced = true
			break
		}
	}
	if !replaced {
		m.groups = append(m.groups, saved)
	}
	m.draft = message.Group{}
	m.selection = nil
	m.state = GroupsReady
	m.mu.Unlock()

	m.logger.Info("group saved", "id", saved.ID, "name", saved.Name)
	return nil
}

func (m *Groups) settleDeleted(gen uint64, id string) error {
	m.mu.Lock()
	if m.stale(gen) {
		m.mu.Unlock()
		m.logger.Debug("stale delete result discarded")
		return errors.WrapInvalid(errors.ErrStaleResponse, "groups", "Delete", "apply result")
	}
	m.busy = false
	kept := m.groups[:0]
	for _, g := range m.groups {
		if g.ID != id {
			kept = append(kept, g)
		}
	}
	m.groups = kept
	m.state = GroupsReady
	m.mu.Unlock()

	m.logger.Info("group deleted", "id", id)
	return nil
}

func (m *Groups) settleFailure(gen uint64, cause error) error {
	m.mu.Lock()
	if m.stale(gen) {
		m.mu.Unlock()
		m.logger.Debug("stale group failure discarded")
		return errors.WrapInvalid(errors.ErrStaleResponse, "groups", "settle", "apply result")
	}
	m.busy = false
	m.err = cause
	m.state = GroupsFailed
	m.mu.Unlock()

	m.logger.Warn("group operation failed", "error", cause.Error())
	failureToast(m.deps.Notifier, notify.CategoryGroups, "Group Operation Failed", cause)
	return cause
}
