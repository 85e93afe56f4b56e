// Package registry loads the identity manifest and serves profile lookups.
package registry

import (
	"fmt"
	"os"
	"strings"

	"github.com/tidwall/gjson"

	"lunar-card/internal/apperr"
	"lunar-card/internal/model"
)

// Registry errors.
var (
	// ErrManifestNotArray is returned when the manifest is valid JSON but not a list.
	ErrManifestNotArray = fmt.Errorf("%w: manifest must be an array", apperr.ErrLoad)

	// ErrManifestInvalid is returned when the manifest is not valid JSON.
	ErrManifestInvalid = fmt.Errorf("%w: manifest is not valid JSON", apperr.ErrLoad)

	// ErrProfileNotFound is returned when no profile has the requested key.
	ErrProfileNotFound = fmt.Errorf("%w: profile", apperr.ErrNotFound)
)

// DefaultAvatar is served when none of a profile's avatar candidates exist.
const DefaultAvatar = "default.pnj.jpg"

// Registry is a read-only table of profiles in manifest order.
type Registry struct {
	profiles []model.Profile
}

// Empty returns a registry with no profiles, used when the manifest fails to load.
func Empty() *Registry {
	return &Registry{}
}

// Load reads and parses the manifest file at path.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read manifest %s: %v", apperr.ErrLoad, path, err)
	}
	return Parse(data)
}

// Parse builds a registry from manifest JSON. Entries whose key, label or
// passphrase is empty after trimming are dropped.
func Parse(data []byte) (*Registry, error) {
	if !gjson.ValidBytes(data) {
		return nil, ErrManifestInvalid
	}
	root := gjson.ParseBytes(data)
	if !root.IsArray() {
		return nil, ErrManifestNotArray
	}

	r := &Registry{}
	root.ForEach(func(_, item gjson.Result) bool {
		if p, ok := normalize(item); ok {
			r.profiles = append(r.profiles, p)
		}
		return true
	})
	return r, nil
}

func normalize(item gjson.Result) (model.Profile, bool) {
	p := model.Profile{
		Key:                 strings.TrimSpace(item.Get("key").String()),
		Label:               strings.TrimSpace(item.Get("label").String()),
		Pass:                strings.TrimSpace(item.Get("pass").String()),
		Role:                model.Role(strings.TrimSpace(item.Get("role").String())),
		FirstWish:           item.Get("firstWish").String(),
		UseGlobalRandomOnly: truthy(item.Get("useGlobalRandomOnly")),
		Suffix:              item.Get("suffix").String(),
		NameOverride:        item.Get("nameOverride").String(),
	}
	if p.Role == "" {
		p.Role = model.RoleGuest
	}
	if exts := item.Get("exts"); exts.IsArray() {
		p.Exts = stringList(exts)
	} else {
		p.Exts = append([]string(nil), model.DefaultAvatarExts...)
	}
	if wishes := item.Get("wishes"); wishes.IsArray() {
		p.Wishes = stringList(wishes)
	}
	return p, p.Key != "" && p.Label != "" && p.Pass != ""
}

func stringList(arr gjson.Result) []string {
	out := []string{}
	for _, v := range arr.Array() {
		out = append(out, v.String())
	}
	return out
}

// truthy mirrors the loose flag semantics of hand-written manifests:
// "yes", 1 and true all enable a flag.
func truthy(v gjson.Result) bool {
	switch v.Type {
	case gjson.True, gjson.JSON:
		return true
	case gjson.String:
		return v.Str != ""
	case gjson.Number:
		return v.Num != 0
	default:
		return false
	}
}

// Len returns the number of loaded profiles.
func (r *Registry) Len() int {
	return len(r.profiles)
}

// FindByKey returns the first profile with the given key.
func (r *Registry) FindByKey(key string) (*model.Profile, error) {
	for i := range r.profiles {
		if r.profiles[i].Key == key {
			p := r.profiles[i]
			return &p, nil
		}
	}
	return nil, ErrProfileNotFound
}

// Search returns profiles whose label or key contains query, case-insensitively,
// in manifest order. An empty query returns every profile.
func (r *Registry) Search(query string) []model.Profile {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]model.Profile, 0, len(r.profiles))
	for _, p := range r.profiles {
		if strings.Contains(strings.ToLower(p.Label), q) || strings.Contains(strings.ToLower(p.Key), q) {
			out = append(out, p)
		}
	}
	return out
}

// Hint returns the passphrase of the profile with the given key.
func (r *Registry) Hint(key string) (string, error) {
	p, err := r.FindByKey(key)
	if err != nil {
		return "", err
	}
	return p.Pass, nil
}

// AvatarCandidates returns the avatar file names to try for p, in order,
// ending with the default avatar.
func AvatarCandidates(p *model.Profile) []string {
	if p == nil {
		return []string{DefaultAvatar}
	}
	exts := p.Exts
	if exts == nil {
		exts = model.DefaultAvatarExts
	}
	out := make([]string, 0, len(exts)+1)
	for _, ext := range exts {
		out = append(out, p.Key+"."+ext)
	}
	return append(out, DefaultAvatar)
}
