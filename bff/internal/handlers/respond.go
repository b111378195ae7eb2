package handlers

import (
	"net/http"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/avika-ai/avika-bff/bff/internal/backend"
	"github.com/avika-ai/avika-bff/common/httputil"
	"github.com/avika-ai/avika-bff/common/logging"
)

// writeStruct writes a backend reply as a JSON object.
func writeStruct(w http.ResponseWriter, status int, msg *structpb.Struct) {
	data, err := protojson.Marshal(msg)
	if err != nil {
		httputil.WriteError(w, http.StatusBadGateway, "failed to encode backend response")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeBackendError answers a failed backend call with the mapped status.
func writeBackendError(w http.ResponseWriter, r *http.Request, logger *logging.Logger, rpc string, err error) {
	code := backend.HTTPStatus(err)
	logger.WarnContext(r.Context(), "backend call failed",
		logging.RPC(rpc),
		logging.Status(code),
		logging.Error(err),
	)
	httputil.WriteError(w, code, backend.Message(err))
}

// decodeOptionalJSON decodes the body into dst unless the body is empty.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.Body == nil || r.Body == http.NoBody || r.ContentLength == 0 {
		return nil
	}
	return httputil.DecodeJSON(w, r, dst)
}
