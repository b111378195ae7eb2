package handlers

import (
	"errors"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/avika-ai/avika-bff/bff/internal/backend"
	"github.com/avika-ai/avika-bff/common/httputil"
	"github.com/avika-ai/avika-bff/common/logging"
)

// ReportsHandler exposes report generation and download.
type ReportsHandler struct {
	client *backend.Client
	logger *logging.Logger
}

func NewReportsHandler(client *backend.Client, logger *logging.Logger) *ReportsHandler {
	return &ReportsHandler{client: client, logger: logger}
}

// reportBody is the POST /api/reports request. Times are unix seconds.
type reportBody struct {
	StartTime int64    `json:"start_time"`
	EndTime   int64    `json:"end_time"`
	AgentIDs  []string `json:"agent_ids"`
}

// Generate handles POST /api/reports
func (h *ReportsHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var body reportBody
	if err := decodeOptionalJSON(w, r, &body); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	req, err := newReportRequest(body.StartTime, body.EndTime, body.AgentIDs)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.client.GenerateReport(r.Context(), req)
	if err != nil {
		writeBackendError(w, r, h.logger, "GenerateReport", err)
		return
	}
	writeStruct(w, http.StatusOK, resp)
}

// Download handles GET /api/reports/download?start=&end=&agent_ids=
func (h *ReportsHandler) Download(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var start, end int64
	if s := q.Get("start"); s != "" {
		v, ok := httputil.ParseInt64Param(s)
		if !ok {
			httputil.WriteError(w, http.StatusBadRequest, "start must be a unix timestamp")
			return
		}
		start = v
	}
	if s := q.Get("end"); s != "" {
		v, ok := httputil.ParseInt64Param(s)
		if !ok {
			httputil.WriteError(w, http.StatusBadRequest, "end must be a unix timestamp")
			return
		}
		end = v
	}

	req, err := newReportRequest(start, end, httputil.ParseCSVParam(q.Get("agent_ids")))
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := h.client.DownloadReport(r.Context(), req)
	if err != nil {
		writeBackendError(w, r, h.logger, "DownloadReport", err)
		return
	}

	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": report.FileName}))
	w.Header().Set("Content-Length", strconv.Itoa(len(report.Content)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(report.Content); err != nil {
		h.logger.DebugContext(r.Context(), "report download interrupted", logging.Error(err))
	}
}

func newReportRequest(start, end int64, agentIDs []string) (backend.ReportRequest, error) {
	var req backend.ReportRequest
	if start < 0 || end < 0 {
		return req, errors.New("timestamps must not be negative")
	}
	if start > 0 {
		req.Start = time.Unix(start, 0)
	}
	if end > 0 {
		req.End = time.Unix(end, 0)
	}
	if start > 0 && end > 0 && end < start {
		return req, errors.New("end time must be after start time")
	}
	req.AgentIDs = agentIDs
	return req, nil
}
