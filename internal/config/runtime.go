package config

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/compute/metadata"
)

// ErrIncompleteEnvironment is returned when the agent cannot determine its own
// project, function name or region. The API is disabled in that case.
var ErrIncompleteEnvironment = errors.New("incomplete runtime environment")

// metadataTimeout bounds the metadata server lookups made at startup.
const metadataTimeout = 3 * time.Second

// RuntimeEnvironment is the agent's own identity, resolved once at startup.
type RuntimeEnvironment struct {
	ProjectID    string `json:"projectId"`
	FunctionName string `json:"functionName"`
	Region       string `json:"region"`
	URL          string `json:"url"`
}

// MetadataSource answers project and instance queries. *metadata.Client satisfies it.
type MetadataSource interface {
	ProjectIDWithContext(ctx context.Context) (string, error)
	GetWithContext(ctx context.Context, suffix string) (string, error)
}

// NewMetadataSource returns a metadata server client using httpClient, or the
// package default client when httpClient is nil.
func NewMetadataSource(httpClient *http.Client) MetadataSource {
	return metadata.NewClient(httpClient)
}

// ResolveRuntimeEnvironment reads the runtime identity from the environment and fills
// the project and region from md when they are not set. md may be nil.
// The returned error wraps ErrIncompleteEnvironment.
func ResolveRuntimeEnvironment(ctx context.Context, md MetadataSource) (RuntimeEnvironment, error) {
	env := RuntimeEnvironment{
		ProjectID:    firstEnv("GOOGLE_CLOUD_PROJECT", "GCP_PROJECT", "GCLOUD_PROJECT"),
		FunctionName: firstEnv("K_SERVICE", "FUNCTION_TARGET", "FUNCTION_NAME"),
		Region:       firstEnv("FUNCTION_REGION", "GOOGLE_CLOUD_REGION"),
		URL:          strings.TrimRight(os.Getenv("AGENT_URL"), "/"),
	}

	var lookupErrs []error
	if md != nil && (env.ProjectID == "" || env.Region == "") {
		mctx, cancel := context.WithTimeout(ctx, metadataTimeout)
		defer cancel()

		if env.ProjectID == "" {
			id, err := md.ProjectIDWithContext(mctx)
			if err != nil {
				lookupErrs = append(lookupErrs, fmt.Errorf("project id: %w", err))
			}
			env.ProjectID = strings.TrimSpace(id)
		}
		if env.Region == "" {
			region, err := md.GetWithContext(mctx, "instance/region")
			if err != nil {
				lookupErrs = append(lookupErrs, fmt.Errorf("region: %w", err))
			}
			env.Region = regionName(region)
		}
	}

	if env.URL == "" && env.ProjectID != "" && env.Region != "" && env.FunctionName != "" {
		env.URL = fmt.Sprintf("https://%s-%s.cloudfunctions.net/%s", env.Region, env.ProjectID, env.FunctionName)
	}

	if err := env.Validate(); err != nil {
		if len(lookupErrs) > 0 {
			return env, fmt.Errorf("%w (metadata server: %v)", err, errors.Join(lookupErrs...))
		}
		return env, err
	}
	return env, nil
}

// Validate returns an error wrapping ErrIncompleteEnvironment naming every missing field.
func (e RuntimeEnvironment) Validate() error {
	var missing []string
	if e.ProjectID == "" {
		missing = append(missing, "project id")
	}
	if e.FunctionName == "" {
		missing = append(missing, "function name")
	}
	if e.Region == "" {
		missing = append(missing, "region")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrIncompleteEnvironment, strings.Join(missing, ", "))
	}
	return nil
}

// regionName strips the "projects/<number>/regions/" prefix the metadata server returns.
func regionName(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndex(s, "/"); i >= 0 {
		return s[i+1:]
	}
	return s
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}
