package backup

import (
	"strconv"

	"github.com/MacJediWizard/firekeeper/internal/models"
	pkgmodels "github.com/MacJediWizard/firekeeper/pkg/models"
)

// Encode renders an operation as the controller-facing envelope.
// Sizes are decimal strings so that byte counts above 2^53 survive JSON clients.
func Encode(op *models.Operation) pkgmodels.Envelope {
	switch op.State {
	case models.OperationStateCompleted:
		data := map[string]any{}
		var result models.OperationResult
		if op.Result != nil {
			result = *op.Result
		}
		data["size"] = strconv.FormatInt(result.Size, 10)
		if op.Kind == models.BackupKindDocuments {
			data["documentsCount"] = result.Count
			data["outputUri"] = result.Location
		} else {
			data["usersCount"] = result.Count
		}
		return pkgmodels.Envelope{State: op.State, Data: data}

	case models.OperationStateFailed:
		return pkgmodels.Envelope{
			State: op.State,
			Data:  map[string]any{"reason": op.Reason},
		}

	default:
		data := map[string]any{}
		if op.ExternalID != "" {
			data["operationId"] = op.ExternalID
		}
		if op.Progress != nil {
			data["progress"] = map[string]any{
				"completedWork": op.Progress.CompletedWork,
				"estimatedWork": op.Progress.EstimatedWork,
			}
		}
		return pkgmodels.Envelope{State: models.OperationStatePending, Data: data}
	}
}
