package export

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// userIterator yields exported user records until iterator.Done.
type userIterator interface {
	Next() (*auth.ExportedUserRecord, error)
}

// UserRecord is one user in the export file. Field names follow the format written by
// `firebase auth:export` so artifacts can be restored with `firebase auth:import`.
type UserRecord struct {
	LocalID          string          `json:"localId"`
	Email            string          `json:"email,omitempty"`
	EmailVerified    bool            `json:"emailVerified"`
	PasswordHash     string          `json:"passwordHash,omitempty"`
	Salt             string          `json:"salt,omitempty"`
	DisplayName      string          `json:"displayName,omitempty"`
	PhotoURL         string          `json:"photoUrl,omitempty"`
	PhoneNumber      string          `json:"phoneNumber,omitempty"`
	Disabled         bool            `json:"disabled"`
	CreatedAt        string          `json:"createdAt,omitempty"`
	LastSignedInAt   string          `json:"lastSignedInAt,omitempty"`
	CustomAttributes string          `json:"customAttributes,omitempty"`
	TenantID         string          `json:"tenantId,omitempty"`
	ProviderUserInfo []ProviderEntry `json:"providerUserInfo"`
}

// ProviderEntry is a linked sign-in provider of a user.
type ProviderEntry struct {
	ProviderID  string `json:"providerId"`
	RawID       string `json:"rawId"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	PhotoURL    string `json:"photoUrl,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
}

// FirebaseIdentityExporter writes all Firebase Authentication users of a project to a
// local JSON file.
type FirebaseIdentityExporter struct {
	users  func(ctx context.Context) userIterator
	logger zerolog.Logger
}

// NewFirebaseIdentityExporter creates an exporter for the users of projectID.
func NewFirebaseIdentityExporter(ctx context.Context, projectID string, logger zerolog.Logger, opts ...option.ClientOption) (*FirebaseIdentityExporter, error) {
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("initialize firebase app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("initialize firebase auth client: %w", err)
	}

	return newIdentityExporter(func(ctx context.Context) userIterator {
		return client.Users(ctx, "")
	}, logger), nil
}

func newIdentityExporter(users func(ctx context.Context) userIterator, logger zerolog.Logger) *FirebaseIdentityExporter {
	return &FirebaseIdentityExporter{
		users:  users,
		logger: logger.With().Str("component", "identity_exporter").Logger(),
	}
}

// ExportUsers streams every user into path as {"users": [...]}. The file is left in
// place on error; the caller owns its removal.
func (e *FirebaseIdentityExporter) ExportUsers(ctx context.Context, path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}

	count, err := e.writeUsers(ctx, f)
	if closeErr := f.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("close export file: %w", closeErr)
	}
	if err != nil {
		return err
	}

	e.logger.Debug().Int64("users", count).Str("path", path).Msg("users exported")
	return nil
}

func (e *FirebaseIdentityExporter) writeUsers(ctx context.Context, f *os.File) (int64, error) {
	w := bufio.NewWriter(f)
	if _, err := w.WriteString(`{"users":[`); err != nil {
		return 0, fmt.Errorf("write export file: %w", err)
	}

	it := e.users(ctx)
	var count int64
	for {
		u, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return count, fmt.Errorf("list users: %w", err)
		}

		rec := toUserRecord(u)
		data, err := json.Marshal(rec)
		if err != nil {
			return count, fmt.Errorf("encode user %s: %w", rec.LocalID, err)
		}
		if count > 0 {
			if err := w.WriteByte(','); err != nil {
				return count, fmt.Errorf("write export file: %w", err)
			}
		}
		if _, err := w.Write(data); err != nil {
			return count, fmt.Errorf("write export file: %w", err)
		}
		count++
	}

	if _, err := w.WriteString("]}"); err != nil {
		return count, fmt.Errorf("write export file: %w", err)
	}
	if err := w.Flush(); err != nil {
		return count, fmt.Errorf("flush export file: %w", err)
	}
	return count, nil
}

func toUserRecord(u *auth.ExportedUserRecord) UserRecord {
	rec := UserRecord{
		PasswordHash:     u.PasswordHash,
		Salt:             u.PasswordSalt,
		ProviderUserInfo: []ProviderEntry{},
	}
	if u.UserRecord == nil {
		return rec
	}

	rec.EmailVerified = u.EmailVerified
	rec.Disabled = u.Disabled
	rec.TenantID = u.TenantID
	if u.UserInfo != nil {
		rec.LocalID = u.UID
		rec.Email = u.Email
		rec.DisplayName = u.DisplayName
		rec.PhotoURL = u.PhotoURL
		rec.PhoneNumber = u.PhoneNumber
	}
	if md := u.UserMetadata; md != nil {
		if md.CreationTimestamp > 0 {
			rec.CreatedAt = strconv.FormatInt(md.CreationTimestamp, 10)
		}
		if md.LastLogInTimestamp > 0 {
			rec.LastSignedInAt = strconv.FormatInt(md.LastLogInTimestamp, 10)
		}
	}
	if len(u.CustomClaims) > 0 {
		if claims, err := json.Marshal(u.CustomClaims); err == nil {
			rec.CustomAttributes = string(claims)
		}
	}
	for _, p := range u.ProviderUserInfo {
		if p == nil {
			continue
		}
		rec.ProviderUserInfo = append(rec.ProviderUserInfo, ProviderEntry{
			ProviderID:  p.ProviderID,
			RawID:       p.UID,
			Email:       p.Email,
			DisplayName: p.DisplayName,
			PhotoURL:    p.PhotoURL,
			PhoneNumber: p.PhoneNumber,
		})
	}
	return rec
}
