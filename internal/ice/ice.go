// Package ice holds the STUN/TURN server list handed to browsers so they can
// build the peer-to-peer mesh. The coordinator never relays media itself.
package ice

import (
	"errors"
	"fmt"
	"os"

	"github.com/pion/stun/v3"
	"gopkg.in/yaml.v3"
)

var ErrMissingCredential = errors.New("turn server requires username and credential")

// Server mirrors the browser RTCIceServer dictionary.
type Server struct {
	URLs       []string `json:"urls" yaml:"urls"`
	Username   string   `json:"username,omitempty" yaml:"username"`
	Credential string   `json:"credential,omitempty" yaml:"credential"`
}

type file struct {
	Servers []Server `yaml:"iceServers"`
}

func Default() []Server {
	return []Server{{URLs: []string{"stun:stun.l.google.com:19302"}}}
}

// Load reads a YAML file of the form
//
//	iceServers:
//	  - urls: ["stun:stun.example.org:3478"]
//	  - urls: ["turn:turn.example.org:3478?transport=udp"]
//	    username: alice
//	    credential: secret
//
// An empty path yields Default().
func Load(path string) ([]Server, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ice config: %w", err)
	}

	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse ice config: %w", err)
	}
	if err := Validate(f.Servers); err != nil {
		return nil, err
	}
	if len(f.Servers) == 0 {
		return Default(), nil
	}
	return f.Servers, nil
}

// Validate checks every URL with the STUN URI grammar (RFC 7064/7065).
func Validate(servers []Server) error {
	for i, s := range servers {
		if len(s.URLs) == 0 {
			return fmt.Errorf("ice server %d: no urls", i)
		}
		for _, raw := range s.URLs {
			u, err := stun.ParseURI(raw)
			if err != nil {
				return fmt.Errorf("ice server %d: %q: %w", i, raw, err)
			}
			isTURN := u.Scheme == stun.SchemeTypeTURN || u.Scheme == stun.SchemeTypeTURNS
			if isTURN && (s.Username == "" || s.Credential == "") {
				return fmt.Errorf("ice server %d: %q: %w", i, raw, ErrMissingCredential)
			}
		}
	}
	return nil
}
