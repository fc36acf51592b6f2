package export

import (
	"context"
	"errors"
	"fmt"

	admin "cloud.google.com/go/firestore/apiv1/admin"
	"cloud.google.com/go/firestore/apiv1/admin/adminpb"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// exportPoll is a single observation of an export long-running operation.
type exportPoll struct {
	Done     bool
	Err      error
	Response *adminpb.ExportDocumentsResponse
	Metadata *adminpb.ExportDocumentsMetadata
}

// adminAPI is the slice of the Firestore admin client the exporter needs.
type adminAPI interface {
	ExportDocuments(ctx context.Context, req *adminpb.ExportDocumentsRequest) (string, error)
	PollExport(ctx context.Context, name string) (*exportPoll, error)
	Close() error
}

// firestoreAdmin adapts *admin.FirestoreAdminClient to adminAPI.
type firestoreAdmin struct {
	client *admin.FirestoreAdminClient
}

func (f *firestoreAdmin) ExportDocuments(ctx context.Context, req *adminpb.ExportDocumentsRequest) (string, error) {
	op, err := f.client.ExportDocuments(ctx, req)
	if err != nil {
		return "", err
	}
	return op.Name(), nil
}

func (f *firestoreAdmin) PollExport(ctx context.Context, name string) (*exportPoll, error) {
	op := f.client.ExportDocumentsOperation(name)
	resp, err := op.Poll(ctx)
	if err != nil && !op.Done() {
		// The poll RPC itself failed; the export's state is unknown.
		return nil, err
	}

	p := &exportPoll{Done: op.Done(), Err: err, Response: resp}
	if md, mdErr := op.Metadata(); mdErr == nil {
		p.Metadata = md
	}
	return p, nil
}

func (f *firestoreAdmin) Close() error {
	return f.client.Close()
}

// FirestoreExporter starts and inspects Firestore managed export jobs.
type FirestoreExporter struct {
	api    adminAPI
	logger zerolog.Logger
}

// NewFirestoreExporter creates a FirestoreExporter backed by the Firestore admin API.
func NewFirestoreExporter(ctx context.Context, logger zerolog.Logger, opts ...option.ClientOption) (*FirestoreExporter, error) {
	client, err := admin.NewFirestoreAdminClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create firestore admin client: %w", err)
	}
	return newFirestoreExporter(&firestoreAdmin{client: client}, logger), nil
}

func newFirestoreExporter(api adminAPI, logger zerolog.Logger) *FirestoreExporter {
	return &FirestoreExporter{
		api:    api,
		logger: logger.With().Str("component", "firestore_exporter").Logger(),
	}
}

// StartExport starts an export and returns the platform operation name.
func (e *FirestoreExporter) StartExport(ctx context.Context, req DocumentExportRequest) (string, error) {
	if req.ProjectID == "" {
		return "", errors.New("project id is required")
	}

	name, err := e.api.ExportDocuments(ctx, &adminpb.ExportDocumentsRequest{
		Name:            req.DatabaseName(),
		CollectionIds:   req.CollectionIDs,
		OutputUriPrefix: req.OutputURIPrefix,
	})
	if err != nil {
		return "", err
	}

	e.logger.Debug().
		Str("database", req.DatabaseName()).
		Str("output_uri_prefix", req.OutputURIPrefix).
		Str("operation", name).
		Msg("firestore export requested")
	return name, nil
}

// CheckStatus polls the named export once. It never blocks until completion.
func (e *FirestoreExporter) CheckStatus(ctx context.Context, operationName string) (DocumentExportStatus, error) {
	p, err := e.api.PollExport(ctx, operationName)
	if err != nil {
		switch status.Code(err) {
		case codes.NotFound:
			return DocumentExportStatus{}, fmt.Errorf("poll export %s: %w: %w", operationName, ErrExportNotFound, err)
		case codes.InvalidArgument:
			return DocumentExportStatus{}, fmt.Errorf("poll export %s: %w: %w", operationName, ErrInvalidExportName, err)
		}
		return DocumentExportStatus{}, fmt.Errorf("poll export %s: %w", operationName, err)
	}
	return statusFromPoll(operationName, p), nil
}

// Close releases the admin client.
func (e *FirestoreExporter) Close() error {
	return e.api.Close()
}

func statusFromPoll(name string, p *exportPoll) DocumentExportStatus {
	status := DocumentExportStatus{Name: name, State: StateRunning}

	if md := p.Metadata; md != nil {
		status.Documents = progressOf(md.GetProgressDocuments())
		status.Bytes = progressOf(md.GetProgressBytes())
		status.OutputURIPrefix = md.GetOutputUriPrefix()
		if ts := md.GetStartTime(); ts != nil {
			status.StartTime = ts.AsTime()
		}
		if ts := md.GetEndTime(); ts != nil {
			status.EndTime = ts.AsTime()
		}
	}

	if !p.Done {
		return status
	}

	if p.Err != nil {
		status.State = StateFailed
		status.Error = p.Err.Error()
		return status
	}

	status.State = StateCompleted
	if uri := p.Response.GetOutputUriPrefix(); uri != "" {
		status.OutputURIPrefix = uri
	}
	return status
}

func progressOf(p *adminpb.Progress) Progress {
	return Progress{
		Completed: p.GetCompletedWork(),
		Estimated: p.GetEstimatedWork(),
	}
}
