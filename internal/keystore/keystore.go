// Package keystore loads keys.yaml: the access keys callers present and the
// commands each key may dispatch.
package keystore

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"os"
	"path"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// AccessKey is one caller credential. Commands holds path.Match patterns
// against "service.method"; empty means every command.
type AccessKey struct {
	Name     string   `yaml:"name"`
	Value    string   `yaml:"value"`
	Commands []string `yaml:"commands"`
	Comment  string   `yaml:"comment"`
}

// Allows reports whether cmd matches one of the key's patterns.
func (k AccessKey) Allows(cmd string) bool {
	if len(k.Commands) == 0 {
		return true
	}
	for _, p := range k.Commands {
		if ok, _ := path.Match(p, cmd); ok {
			return true
		}
	}
	return false
}

type file struct {
	AccessKeys []AccessKey `yaml:"access_keys"`
}

type Store struct {
	keys []AccessKey
}

// Load reads path. An access key value may be left empty in the file and
// provided through ODR_ACCESS_KEY_<NAME> (or ODR_ACCESS_KEY_<N>, 1-based,
// for unnamed keys).
func Load(p string) (*Store, error) {
	b, err := os.ReadFile(p)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}

func Parse(b []byte) (*Store, error) {
	var f file
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse keys: %w", err)
	}
	st := &Store{}
	seen := map[string]bool{}
	for i, k := range f.AccessKeys {
		k.Name = strings.TrimSpace(k.Name)
		if v := strings.TrimSpace(os.Getenv(envVarForAccessKey(k.Name, i))); v != "" {
			k.Value = v
		}
		k.Value = strings.TrimSpace(k.Value)
		if k.Value == "" {
			return nil, fmt.Errorf("access_keys[%d] %q: value is empty (set it or %s)", i, k.Name, envVarForAccessKey(k.Name, i))
		}
		if k.Name != "" {
			if seen[k.Name] {
				return nil, fmt.Errorf("access_keys[%d]: duplicate name %q", i, k.Name)
			}
			seen[k.Name] = true
		}
		for _, p := range k.Commands {
			if _, err := path.Match(p, ""); err != nil {
				return nil, fmt.Errorf("access_keys[%d] %q: bad command pattern %q: %w", i, k.Name, p, err)
			}
		}
		st.keys = append(st.keys, k)
	}
	if len(st.keys) == 0 {
		return nil, errors.New("keys file has no access_keys")
	}
	return st, nil
}

// MatchAccessKey finds the key whose value equals v.
func (s *Store) MatchAccessKey(v string) (AccessKey, bool) {
	v = strings.TrimSpace(v)
	if s == nil || v == "" {
		return AccessKey{}, false
	}
	for _, k := range s.keys {
		if subtle.ConstantTimeCompare([]byte(k.Value), []byte(v)) == 1 {
			return cloneKey(k), true
		}
	}
	return AccessKey{}, false
}

// ByName returns the key called name.
func (s *Store) ByName(name string) (AccessKey, bool) {
	if s == nil {
		return AccessKey{}, false
	}
	for _, k := range s.keys {
		if k.Name == name {
			return cloneKey(k), true
		}
	}
	return AccessKey{}, false
}

// AccessKeys returns a copy of all keys.
func (s *Store) AccessKeys() []AccessKey {
	if s == nil {
		return nil
	}
	out := make([]AccessKey, len(s.keys))
	for i, k := range s.keys {
		out[i] = cloneKey(k)
	}
	return out
}

func cloneKey(k AccessKey) AccessKey {
	k.Commands = append([]string(nil), k.Commands...)
	return k
}

func envVarForAccessKey(name string, idx int) string {
	if name != "" {
		return "ODR_ACCESS_KEY_" + sanitizeEnvToken(strings.ToUpper(name))
	}
	return "ODR_ACCESS_KEY_" + strconv.Itoa(idx+1)
}

func sanitizeEnvToken(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
			continue
		}
		b.WriteByte('_')
	}
	return b.String()
}
