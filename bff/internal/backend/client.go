package backend

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// Full method names of the unary backend RPCs.
const (
	ListAgentsMethod      = "/agent.AgentService/ListAgents"
	UpdateAgentMethod     = "/agent.AgentService/UpdateAgent"
	ListAlertRulesMethod  = "/agent.AgentService/ListAlertRules"
	CreateAlertRuleMethod = "/agent.AgentService/CreateAlertRule"
	GenerateReportMethod  = "/agent.AgentService/GenerateReport"
	DownloadReportMethod  = "/agent.AgentService/DownloadReport"
)

// ErrMalformedResponse is returned when a backend reply lacks a field the
// gateway relies on.
var ErrMalformedResponse = errors.New("malformed backend response")

// ReportRequest selects the data a report covers. Zero times let the
// backend pick its default range.
type ReportRequest struct {
	Start    time.Time
	End      time.Time
	AgentIDs []string
}

func (r ReportRequest) fields() map[string]any {
	m := map[string]any{}
	if !r.Start.IsZero() {
		m["start_time"] = r.Start.Unix()
	}
	if !r.End.IsZero() {
		m["end_time"] = r.End.Unix()
	}
	if len(r.AgentIDs) > 0 {
		ids := make([]any, len(r.AgentIDs))
		for i, id := range r.AgentIDs {
			ids[i] = id
		}
		m["agent_ids"] = ids
	}
	return m
}

// Report is a rendered report file.
type Report struct {
	Content     []byte
	FileName    string
	ContentType string
}

// Client issues unary calls against the agent service.
type Client struct {
	conn    grpc.ClientConnInterface
	timeout time.Duration
}

// NewClient returns a Client. A positive timeout bounds every call.
func NewClient(conn grpc.ClientConnInterface, timeout time.Duration) *Client {
	return &Client{conn: conn, timeout: timeout}
}

// Call invokes method with fields as the request and returns the reply.
func (c *Client) Call(ctx context.Context, method string, fields map[string]any) (*structpb.Struct, error) {
	req, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s request: %w", method, err)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, method, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// ListAgents returns the backend's agent list.
func (c *Client) ListAgents(ctx context.Context) (*structpb.Struct, error) {
	return c.Call(ctx, ListAgentsMethod, nil)
}

// UpdateAgent asks the backend to update agent id. Extra fields from the
// request body are passed through.
func (c *Client) UpdateAgent(ctx context.Context, id string, fields map[string]any) (*structpb.Struct, error) {
	req := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		req[k] = v
	}
	req["agent_id"] = id
	return c.Call(ctx, UpdateAgentMethod, req)
}

// ListAlertRules returns the configured alert rules.
func (c *Client) ListAlertRules(ctx context.Context) (*structpb.Struct, error) {
	return c.Call(ctx, ListAlertRulesMethod, nil)
}

// CreateAlertRule creates rule and returns it as stored.
func (c *Client) CreateAlertRule(ctx context.Context, rule map[string]any) (*structpb.Struct, error) {
	return c.Call(ctx, CreateAlertRuleMethod, rule)
}

// GenerateReport returns report data for r.
func (c *Client) GenerateReport(ctx context.Context, r ReportRequest) (*structpb.Struct, error) {
	return c.Call(ctx, GenerateReportMethod, r.fields())
}

// DownloadReport returns the rendered report file for r. The backend
// sends the content base64-encoded.
func (c *Client) DownloadReport(ctx context.Context, r ReportRequest) (*Report, error) {
	resp, err := c.Call(ctx, DownloadReportMethod, r.fields())
	if err != nil {
		return nil, err
	}

	f := resp.GetFields()
	encoded := f["content"].GetStringValue()
	content, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: report content: %w", ErrMalformedResponse, err)
	}

	report := &Report{
		Content:     content,
		FileName:    f["file_name"].GetStringValue(),
		ContentType: f["content_type"].GetStringValue(),
	}
	if report.FileName == "" {
		report.FileName = fmt.Sprintf("report-%d.pdf", time.Now().Unix())
	}
	if report.ContentType == "" {
		report.ContentType = "application/octet-stream"
	}
	return report, nil
}
