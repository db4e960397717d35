package cache

import (
	"time"

	"github.com/felixgeelhaar/govee-light-management-sub000/message"
)

// Key scheme for the domain cache. Keys are "kind:credential" so a whole
// credential's footprint can be invalidated with one glob.
const (
	keyPrefixAPIKey = "apikey:"
	keyPrefixLights = "lights:"
	keyPrefixGroups = "groups:"
)

// TTLs holds the per-kind entry lifetimes of the domain cache.
type TTLs struct {
	APIKeyValidation time.Duration
	Lights           time.Duration
	Groups           time.Duration
}

// DefaultTTLs returns the production lifetimes: validations are stable for
// ten minutes, device lists for five, group lists for three.
func DefaultTTLs() TTLs {
	return TTLs{
		APIKeyValidation: 10 * time.Minute,
		Lights:           5 * time.Minute,
		Groups:           3 * time.Minute,
	}
}

// Domain wraps a generic store with the convenience keys the workflows use:
// credential validation results, discovered light lists, and saved group
// lists, all keyed by API key.
type Domain struct {
	store *Store[any]
	ttls  TTLs
}

// NewDomain creates the domain cache over an untyped store.
func NewDomain(store *Store[any], ttls TTLs) *Domain {
	if ttls.APIKeyValidation <= 0 || ttls.Lights <= 0 || ttls.Groups <= 0 {
		defaults := DefaultTTLs()
		if ttls.APIKeyValidation <= 0 {
			ttls.APIKeyValidation = defaults.APIKeyValidation
		}
		if ttls.Lights <= 0 {
			ttls.Lights = defaults.Lights
		}
		if ttls.Groups <= 0 {
			ttls.Groups = defaults.Groups
		}
	}
	return &Domain{store: store, ttls: ttls}
}

// Store exposes the underlying store for health and stats reporting.
func (d *Domain) Store() *Store[any] {
	return d.store
}

// SetAPIKeyValid records a successful credential validation. Failed
// validations are never cached; they may be transient.
func (d *Domain) SetAPIKeyValid(apiKey string) error {
	_, err := d.store.Set(keyPrefixAPIKey+apiKey, true, d.ttls.APIKeyValidation)
	return err
}

// APIKeyValid reports whether a credential has a cached successful validation.
func (d *Domain) APIKeyValid(apiKey string) bool {
	v, ok := d.store.Get(keyPrefixAPIKey + apiKey)
	if !ok {
		return false
	}
	valid, ok := v.(bool)
	return ok && valid
}

// SetLights caches the discovered light list for a credential.
func (d *Domain) SetLights(apiKey string, lights []message.Light) error {
	_, err := d.store.Set(keyPrefixLights+apiKey, lights, d.ttls.Lights)
	return err
}

// Lights returns the cached light list for a credential, if present.
func (d *Domain) Lights(apiKey string) ([]message.Light, bool) {
	v, ok := d.store.Get(keyPrefixLights + apiKey)
	if !ok {
		return nil, false
	}
	lights, ok := v.([]message.Light)
	return lights, ok
}

// SetGroups caches the saved group list for a credential.
func (d *Domain) SetGroups(apiKey string, groups []message.Group) error {
	_, err := d.store.Set(keyPrefixGroups+apiKey, groups, d.ttls.Groups)
	return err
}

// Groups returns the cached group list for a credential, if present.
func (d *Domain) Groups(apiKey string) ([]message.Group, bool) {
	v, ok := d.store.Get(keyPrefixGroups + apiKey)
	if !ok {
		return nil, false
	}
	groups, ok := v.([]message.Group)
	return groups, ok
}

// InvalidateLights drops only the cached light list for a credential, used
// by an explicit refresh so the next fetch goes to the device API.
func (d *Domain) InvalidateLights(apiKey string) {
	_, _ = d.store.Delete(keyPrefixLights + apiKey)
}

// InvalidateGroups drops only the cached group list for a credential, used
// after a save or delete so the next load refetches.
func (d *Domain) InvalidateGroups(apiKey string) {
	_, _ = d.store.Delete(keyPrefixGroups + apiKey)
}

// Flush drops every cached entry. Used when cached state itself is the
// suspected failure cause.
func (d *Domain) Flush() {
	d.store.Clear()
}

// InvalidateAPIKey drops everything cached under a credential: its validation
// result, light list, and group list.
func (d *Domain) InvalidateAPIKey(apiKey string) int {
	removed, err := d.store.InvalidatePattern("*:" + apiKey)
	if err != nil {
		return 0
	}
	return removed
}
