package backup

import (
	"errors"
	"reflect"
	"sort"
	"strings"

	"github.com/MacJediWizard/firekeeper/internal/models"
	"github.com/go-playground/validator/v10"
)

// AllowlistPolicy is the optional set of buckets requests may target.
// An empty policy places no restriction.
type AllowlistPolicy struct {
	buckets map[string]struct{}
}

// NewAllowlistPolicy builds a policy from bucket identifiers, ignoring blanks.
func NewAllowlistPolicy(buckets []string) AllowlistPolicy {
	p := AllowlistPolicy{buckets: make(map[string]struct{}, len(buckets))}
	for _, b := range buckets {
		b = strings.TrimSpace(b)
		if b != "" {
			p.buckets[b] = struct{}{}
		}
	}
	return p
}

// IsRestricted returns true if the policy names at least one bucket.
func (p AllowlistPolicy) IsRestricted() bool {
	return len(p.buckets) > 0
}

// Allows reports whether bucket may be targeted under this policy.
func (p AllowlistPolicy) Allows(bucket string) bool {
	if !p.IsRestricted() {
		return true
	}
	_, ok := p.buckets[bucket]
	return ok
}

// Buckets returns the allowed bucket identifiers in sorted order.
func (p AllowlistPolicy) Buckets() []string {
	out := make([]string, 0, len(p.buckets))
	for b := range p.buckets {
		out = append(out, b)
	}
	sort.Strings(out)
	return out
}

// Gate validates inbound backup requests before any export is started.
type Gate struct {
	policy   AllowlistPolicy
	validate *validator.Validate
}

// NewGate creates a Gate enforcing the given allowlist.
func NewGate(policy AllowlistPolicy) *Gate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return &Gate{policy: policy, validate: v}
}

// Policy returns the allowlist enforced by the gate.
func (g *Gate) Policy() AllowlistPolicy {
	return g.policy
}

// Admit checks required fields and the allowlist. It has no side effects.
// A nil return means the request may proceed.
func (g *Gate) Admit(req models.BackupRequest) error {
	if err := g.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return &ValidationError{Field: verrs[0].Field(), Reason: "is required"}
		}
		return &ValidationError{Reason: err.Error()}
	}

	if !req.Kind.Valid() {
		return &ValidationError{Field: "kind", Reason: "is not a supported backup kind"}
	}

	if err := checkObjectPath(req.Path, req.Kind == models.BackupKindDocuments); err != nil {
		return err
	}

	if req.Kind != models.BackupKindDocuments && len(req.Collections) > 0 {
		return &ValidationError{Field: "collections", Reason: "is only supported for document backups"}
	}

	return g.AdmitBucket(req.StorageID)
}

// Allows reports whether bucket passes the allowlist.
func (g *Gate) Allows(bucket string) bool {
	return g.policy.Allows(bucket)
}

// AdmitBucket applies only the allowlist, for endpoints that address a bucket directly.
func (g *Gate) AdmitBucket(bucket string) error {
	if strings.TrimSpace(bucket) == "" {
		return &ValidationError{Field: "storageId", Reason: "is required"}
	}
	if !g.policy.Allows(bucket) {
		return &PolicyViolationError{Bucket: bucket}
	}
	return nil
}

// checkObjectPath rejects paths that would escape or be ambiguous inside a bucket.
// Prefixes (document exports) may end with a slash; object names may not.
func checkObjectPath(p string, prefix bool) error {
	if strings.TrimSpace(p) == "" {
		return &ValidationError{Field: "path", Reason: "is required"}
	}
	if strings.HasPrefix(p, "/") {
		return &ValidationError{Field: "path", Reason: "must be relative to the bucket"}
	}
	if !prefix && strings.HasSuffix(p, "/") {
		return &ValidationError{Field: "path", Reason: "must name an object, not a folder"}
	}
	for _, seg := range strings.Split(strings.TrimSuffix(p, "/"), "/") {
		if seg == "" || seg == "." || seg == ".." {
			return &ValidationError{Field: "path", Reason: "must not contain empty, '.' or '..' segments"}
		}
	}
	return nil
}
