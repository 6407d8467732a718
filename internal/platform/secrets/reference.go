package secrets

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

const (
	scheme       = "secret"
	legacyPrefix = "sm://"
)

// Reference is a parsed secret:// URI.
//
//	secret://firebase/admin?version=3&project=shop-prod
//
// Path segments map onto a Secret Manager secret ID joined by dashes, so the
// example above reads projects/shop-prod/secrets/firebase-admin/versions/3.
type Reference struct {
	// Canonical is the URI without query or fragment; cache and pin keys use it.
	Canonical string
	SecretID  string
	Version   string
	Project   string
}

// ParseReference parses ref, accepting the legacy sm:// scheme as an alias.
func ParseReference(ref string) (Reference, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return Reference{}, errors.New("secrets: empty reference")
	}
	if rest, ok := strings.CutPrefix(ref, legacyPrefix); ok {
		ref = scheme + "://" + rest
	}
	u, err := url.Parse(ref)
	if err != nil {
		return Reference{}, fmt.Errorf("secrets: invalid reference %q: %w", ref, err)
	}
	if u.Scheme != scheme {
		return Reference{}, fmt.Errorf("secrets: unsupported scheme %q", u.Scheme)
	}

	var segments []string
	for _, segment := range strings.Split(u.Host+u.Path, "/") {
		if segment != "" {
			segments = append(segments, segment)
		}
	}
	if len(segments) == 0 {
		return Reference{}, fmt.Errorf("secrets: missing secret name in %q", ref)
	}
	id := strings.Join(segments, "-")
	if !validSecretID(id) {
		return Reference{}, fmt.Errorf("secrets: secret name %q has characters Secret Manager rejects", id)
	}

	query := u.Query()
	return Reference{
		Canonical: scheme + "://" + strings.Join(segments, "/"),
		SecretID:  id,
		Version:   strings.TrimSpace(query.Get("version")),
		Project:   strings.TrimSpace(query.Get("project")),
	}, nil
}

// resource is the Secret Manager version name for the given project and version.
func (r Reference) resource(project, version string) string {
	return fmt.Sprintf("projects/%s/secrets/%s/versions/%s", project, r.SecretID, version)
}

func validSecretID(id string) bool {
	if len(id) > 255 {
		return false
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}

func cacheKey(canonical, version string) string {
	return canonical + "#" + version
}
