package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"campuscore/internal/adapters/reports"
	"campuscore/internal/core"
	"campuscore/internal/httpapi"
	"campuscore/pkg/domain"

	memory "campuscore/internal/infra/persistence/memory"
)

var fixedNow = time.Date(2024, 5, 2, 8, 0, 0, 0, time.UTC)

type fixture struct {
	t      *testing.T
	svc    *core.Service
	server *httptest.Server
	worker *reports.Worker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	reg := prometheus.NewRegistry()
	recorder, err := core.NewPrometheusRecorder(reg)
	if err != nil {
		t.Fatalf("recorder: %v", err)
	}
	svc := core.NewService(memory.NewStore(core.NewDefaultRulesEngine()),
		core.WithMetrics(recorder),
		core.WithClock(func() time.Time { return fixedNow }),
	)
	if _, err := svc.Seed(context.Background()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	worker := reports.NewWorker(svc, nil, nil, 4)
	worker.Start()
	t.Cleanup(func() { _ = worker.Stop(context.Background()) })

	handler := httpapi.NewHandler(svc,
		httpapi.WithExports(worker),
		httpapi.WithMetricsHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})),
		httpapi.WithClock(func() time.Time { return fixedNow }),
	)
	server := httptest.NewServer(handler.Routes())
	t.Cleanup(server.Close)
	return &fixture{t: t, svc: svc, server: server, worker: worker}
}

func (f *fixture) do(method, path string, body any) (*http.Response, []byte) {
	f.t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			f.t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, f.server.URL+path, reader)
	if err != nil {
		f.t.Fatalf("request: %v", err)
	}
	resp, err := f.server.Client().Do(req)
	if err != nil {
		f.t.Fatalf("do %s %s: %v", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		f.t.Fatalf("read body: %v", err)
	}
	return resp, data
}

func (f *fixture) expect(method, path string, body any, status int, out any) []byte {
	f.t.Helper()
	resp, data := f.do(method, path, body)
	if resp.StatusCode != status {
		f.t.Fatalf("%s %s: expected %d, got %d: %s", method, path, status, resp.StatusCode, data)
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			f.t.Fatalf("decode %s: %v", data, err)
		}
	}
	return data
}

type errorBody struct {
	Error struct {
		Code  string `json:"code"`
		Field string `json:"field"`
	} `json:"error"`
}

func TestHealthAndChecklist(t *testing.T) {
	f := newFixture(t)
	var health map[string]any
	f.expect(http.MethodGet, "/healthz", nil, http.StatusOK, &health)
	if health["status"] != "ok" || health["generator"] != false {
		t.Fatalf("unexpected health %+v", health)
	}
	var checklist struct {
		Items []domain.ChecklistItem `json:"items"`
	}
	f.expect(http.MethodGet, "/api/v1/checklist", nil, http.StatusOK, &checklist)
	if len(checklist.Items) != len(domain.Checklist()) {
		t.Fatalf("expected %d items, got %d", len(domain.Checklist()), len(checklist.Items))
	}
}

func TestCampusEndpoints(t *testing.T) {
	f := newFixture(t)
	var created struct {
		Campus domain.Campus `json:"campus"`
	}
	f.expect(http.MethodPost, "/api/v1/campuses", map[string]any{"name": "Library"}, http.StatusCreated, &created)

	var eb errorBody
	f.expect(http.MethodPost, "/api/v1/campuses", map[string]any{"name": " "}, http.StatusBadRequest, &eb)
	if eb.Error.Code != "validation" || eb.Error.Field != "name" {
		t.Fatalf("unexpected error body %+v", eb)
	}
	f.expect(http.MethodPost, "/api/v1/campuses", `{"name":"x","bogus":1}`, http.StatusBadRequest, nil)

	f.expect(http.MethodPatch, "/api/v1/campuses/"+created.Campus.ID, map[string]any{"name": "Main Library"}, http.StatusOK, nil)
	f.expect(http.MethodPatch, "/api/v1/campuses/missing", map[string]any{"name": "x"}, http.StatusNotFound, nil)

	f.expect(http.MethodPut, "/api/v1/campuses/c2/parent", map[string]any{"parent_id": "c4"}, http.StatusConflict, &eb)
	if eb.Error.Code != "cycle" {
		t.Fatalf("expected cycle code, got %+v", eb)
	}
	f.expect(http.MethodPut, "/api/v1/campuses/c4/parent", map[string]any{"parent_id": nil}, http.StatusOK, nil)

	var tree struct {
		Tree []json.RawMessage `json:"tree"`
	}
	f.expect(http.MethodGet, "/api/v1/campuses?view=tree", nil, http.StatusOK, &tree)
	if len(tree.Tree) != 5 {
		t.Fatalf("expected 5 roots after move, got %d", len(tree.Tree))
	}

	var list struct {
		Campuses []domain.Campus `json:"campuses"`
	}
	f.expect(http.MethodPost, "/api/v1/campuses/c2/move", map[string]any{"direction": "up"}, http.StatusOK, &list)
	if list.Campuses[0].ID != "c2" {
		t.Fatalf("expected c2 first after move up, got %s", list.Campuses[0].ID)
	}
	f.expect(http.MethodPost, "/api/v1/campuses/c2/move", map[string]any{"direction": "sideways"}, http.StatusBadRequest, nil)

	ids := []string{"c3", "c1", "c2", "c4", created.Campus.ID}
	f.expect(http.MethodPut, "/api/v1/campuses/order", map[string]any{"ids": ids}, http.StatusOK, &list)
	if list.Campuses[0].ID != "c3" {
		t.Fatalf("expected c3 first after bulk reorder, got %s", list.Campuses[0].ID)
	}

	var path struct {
		Path []domain.Campus `json:"path"`
	}
	f.expect(http.MethodGet, "/api/v1/campuses/c1/path", nil, http.StatusOK, &path)
	if len(path.Path) != 1 {
		t.Fatalf("unexpected path %+v", path.Path)
	}

	var impact struct {
		Plan struct {
			Impact struct {
				Bathrooms int `json:"bathrooms"`
				Tickets   int `json:"tickets"`
			} `json:"impact"`
		} `json:"plan"`
	}
	f.expect(http.MethodGet, "/api/v1/campuses/c1/delete-impact", nil, http.StatusOK, &impact)
	if impact.Plan.Impact.Bathrooms != 2 || impact.Plan.Impact.Tickets != 1 {
		t.Fatalf("unexpected impact %+v", impact.Plan.Impact)
	}
	f.expect(http.MethodDelete, "/api/v1/campuses/c1", nil, http.StatusOK, nil)

	var ticket struct {
		Ticket domain.Ticket `json:"ticket"`
	}
	f.expect(http.MethodGet, "/api/v1/tickets/t1", nil, http.StatusOK, &ticket)
	if !ticket.Ticket.AssetRemoved {
		t.Fatalf("expected orphaned ticket after campus delete")
	}
}

func TestInspectionAndTicketFlow(t *testing.T) {
	f := newFixture(t)
	var outcome struct {
		Inspection domain.Inspection `json:"inspection"`
		Ticket     *domain.Ticket    `json:"ticket"`
	}
	f.expect(http.MethodPost, "/api/v1/inspections", map[string]any{
		"bathroom_id": "b2",
		"date":        "2024-05-01",
		"records": []map[string]any{
			{"item_id": "sink", "status": "critical", "note": "cracked"},
			{"item_id": "door", "status": "ok"},
		},
	}, http.StatusCreated, &outcome)
	if outcome.Ticket == nil || !outcome.Inspection.TicketCreated {
		t.Fatalf("expected ticket raised, got %+v", outcome)
	}
	if outcome.Ticket.Title != "Maintenance needed: WC-S102" {
		t.Fatalf("unexpected fallback title %q", outcome.Ticket.Title)
	}
	f.expect(http.MethodPost, "/api/v1/inspections", map[string]any{"bathroom_id": "b2", "date": "yesterday"}, http.StatusBadRequest, nil)

	var status struct {
		Status domain.AssetStatus `json:"status"`
	}
	f.expect(http.MethodGet, "/api/v1/bathrooms/b2/status", nil, http.StatusOK, &status)
	if !status.Status.Inspected || !status.Status.HasOpenTicket {
		t.Fatalf("unexpected asset status %+v", status.Status)
	}
	var statuses struct {
		Statuses []domain.AssetStatus `json:"statuses"`
	}
	f.expect(http.MethodGet, "/api/v1/bathrooms/statuses?campus_id=c1", nil, http.StatusOK, &statuses)
	if len(statuses.Statuses) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(statuses.Statuses))
	}

	id := outcome.Ticket.ID
	var ticket struct {
		Ticket domain.Ticket `json:"ticket"`
	}
	f.expect(http.MethodPost, "/api/v1/tickets/"+id+"/notes", map[string]any{"text": "Plumber booked"}, http.StatusCreated, &ticket)
	if len(ticket.Ticket.Notes) != 1 || ticket.Ticket.Notes[0].Author != "admin" {
		t.Fatalf("unexpected notes %+v", ticket.Ticket.Notes)
	}
	f.expect(http.MethodPut, "/api/v1/tickets/"+id+"/status", map[string]any{"status": "in_progress"}, http.StatusOK, nil)
	f.expect(http.MethodPut, "/api/v1/tickets/"+id+"/status", map[string]any{"status": "paused"}, http.StatusBadRequest, nil)
	f.expect(http.MethodPost, "/api/v1/tickets/"+id+"/close", nil, http.StatusOK, nil)

	var archive struct {
		Tickets []domain.Ticket `json:"tickets"`
	}
	f.expect(http.MethodGet, "/api/v1/tickets/archive", nil, http.StatusOK, &archive)
	if len(archive.Tickets) != 1 || archive.Tickets[0].ID != id {
		t.Fatalf("unexpected archive %+v", archive.Tickets)
	}
	var active struct {
		Tickets []domain.Ticket `json:"tickets"`
	}
	f.expect(http.MethodGet, "/api/v1/tickets/active", nil, http.StatusOK, &active)
	if len(active.Tickets) != 2 {
		t.Fatalf("expected 2 seeded active tickets, got %d", len(active.Tickets))
	}

	f.expect(http.MethodDelete, "/api/v1/inspections/"+outcome.Inspection.ID, nil, http.StatusNoContent, nil)
	f.expect(http.MethodDelete, "/api/v1/tickets/"+id, nil, http.StatusNoContent, nil)
	f.expect(http.MethodGet, "/api/v1/tickets/"+id, nil, http.StatusNotFound, nil)
}

func TestWorkRequestAndBathroomEndpoints(t *testing.T) {
	f := newFixture(t)
	var bathroom struct {
		Bathroom domain.Bathroom `json:"bathroom"`
	}
	f.expect(http.MethodPost, "/api/v1/bathrooms", map[string]any{"campus_id": "c3", "floor": "2", "code": "WC-E201", "gender": "female"}, http.StatusCreated, &bathroom)
	f.expect(http.MethodPost, "/api/v1/bathrooms", map[string]any{"campus_id": "c3", "floor": "2"}, http.StatusBadRequest, nil)
	f.expect(http.MethodPut, "/api/v1/bathrooms/"+bathroom.Bathroom.ID, map[string]any{"campus_id": "c3", "floor": "3", "code": "WC-E301"}, http.StatusOK, &bathroom)
	if bathroom.Bathroom.Floor != "3" || bathroom.Bathroom.Gender != domain.GenderAllGender {
		t.Fatalf("unexpected bathroom %+v", bathroom.Bathroom)
	}
	var list struct {
		Bathrooms []domain.Bathroom `json:"bathrooms"`
	}
	f.expect(http.MethodGet, "/api/v1/bathrooms?campus_id=c3", nil, http.StatusOK, &list)
	if len(list.Bathrooms) != 1 {
		t.Fatalf("expected one bathroom on c3, got %d", len(list.Bathrooms))
	}

	var ticket struct {
		Ticket domain.Ticket `json:"ticket"`
	}
	f.expect(http.MethodPost, "/api/v1/tickets", map[string]any{
		"campus_id":      "c3",
		"bathroom_id":    bathroom.Bathroom.ID,
		"title":          "Soap dispensers",
		"description":    "Fit automatic dispensers",
		"priority":       "high",
		"estimated_cost": 240,
	}, http.StatusCreated, &ticket)
	if ticket.Ticket.BathroomCode != "WC-E301" || ticket.Ticket.Priority != domain.PriorityHigh {
		t.Fatalf("unexpected ticket %+v", ticket.Ticket)
	}
	f.expect(http.MethodPost, "/api/v1/tickets", map[string]any{"campus_id": "c3", "title": "x", "description": "y", "estimated_cost": -1}, http.StatusBadRequest, nil)

	f.expect(http.MethodDelete, "/api/v1/bathrooms/"+bathroom.Bathroom.ID, nil, http.StatusNoContent, nil)
	f.expect(http.MethodGet, "/api/v1/bathrooms/"+bathroom.Bathroom.ID, nil, http.StatusNotFound, nil)

	var dash struct {
		Bathrooms int `json:"bathrooms"`
		Critical  int `json:"critical"`
	}
	f.expect(http.MethodGet, "/api/v1/dashboard", nil, http.StatusOK, &dash)
	if dash.Bathrooms != 4 || dash.Critical != 1 {
		t.Fatalf("unexpected dashboard %+v", dash)
	}
}

func TestImportEndpoint(t *testing.T) {
	f := newFixture(t)
	body := "Site;Floor;Code;Gender\nEconomics Campus;1;WC-E1;uomini\nNew Site;2;WC-N1;\n"
	var res struct {
		Result struct {
			NewCampuses  []domain.Campus   `json:"new_campuses"`
			NewBathrooms []domain.Bathroom `json:"new_bathrooms"`
		} `json:"result"`
	}
	f.expect(http.MethodPost, "/api/v1/import?filename=rooms.csv", body, http.StatusOK, &res)
	if len(res.Result.NewCampuses) != 1 || len(res.Result.NewBathrooms) != 2 {
		t.Fatalf("unexpected import result %+v", res.Result)
	}
	f.expect(http.MethodPost, "/api/v1/import?format=pdf", body, http.StatusBadRequest, nil)
}

func TestReportDownloads(t *testing.T) {
	f := newFixture(t)
	resp, data := f.do(http.MethodGet, "/api/v1/reports/active-work", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("active work: %d %s", resp.StatusCode, data)
	}
	if got := resp.Header.Get("Content-Disposition"); !strings.Contains(got, "active_work_2024-05-02.csv") {
		t.Fatalf("unexpected disposition %q", got)
	}
	if !strings.HasPrefix(string(data), `"Type","Priority"`) {
		t.Fatalf("unexpected csv %s", data)
	}

	resp, data = f.do(http.MethodGet, "/api/v1/reports/census?campus_id=c2", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("census: %d %s", resp.StatusCode, data)
	}
	if !strings.Contains(resp.Header.Get("Content-Disposition"), "census_Historic_Villa_(Demo)_2024-05-02.csv") {
		t.Fatalf("unexpected disposition %q", resp.Header.Get("Content-Disposition"))
	}
	if lines := strings.Count(string(data), "\n"); lines != 3 {
		t.Fatalf("expected header plus two rows, got %d lines: %s", lines, data)
	}
	f.expect(http.MethodGet, "/api/v1/reports/census?campus_id=missing", nil, http.StatusNotFound, nil)
}

func TestExportJobs(t *testing.T) {
	f := newFixture(t)
	var created struct {
		Export reports.Job `json:"export"`
	}
	f.expect(http.MethodPost, "/api/v1/exports", map[string]any{"kind": "census", "requested_by": "ops"}, http.StatusAccepted, &created)
	f.expect(http.MethodPost, "/api/v1/exports", map[string]any{"kind": "pdf"}, http.StatusBadRequest, nil)

	deadline := time.Now().Add(5 * time.Second)
	var job struct {
		Export reports.Job `json:"export"`
	}
	for {
		f.expect(http.MethodGet, "/api/v1/exports/"+created.Export.ID, nil, http.StatusOK, &job)
		if job.Export.Status == reports.JobSucceeded || job.Export.Status == reports.JobFailed {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("export did not finish, status %s", job.Export.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}
	if job.Export.Status != reports.JobSucceeded {
		t.Fatalf("export failed: %s", job.Export.Error)
	}
	resp, data := f.do(http.MethodGet, "/api/v1/exports/"+created.Export.ID+"/download", nil)
	if resp.StatusCode != http.StatusOK || !strings.HasPrefix(string(data), `"Site","Parent site"`) {
		t.Fatalf("download: %d %s", resp.StatusCode, data)
	}
	var list struct {
		Exports []reports.Job `json:"exports"`
	}
	f.expect(http.MethodGet, "/api/v1/exports", nil, http.StatusOK, &list)
	if len(list.Exports) != 1 {
		t.Fatalf("expected one export, got %d", len(list.Exports))
	}
	f.expect(http.MethodGet, "/api/v1/exports/missing", nil, http.StatusNotFound, nil)
}

func TestExportsDisabledWithoutWorker(t *testing.T) {
	svc := core.NewService(memory.NewStore(nil))
	server := httptest.NewServer(httpapi.NewHandler(svc).Routes())
	defer server.Close()
	resp, err := server.Client().Get(server.URL + "/api/v1/exports")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	f.expect(http.MethodPost, "/api/v1/campuses", map[string]any{"name": "Gym"}, http.StatusCreated, nil)
	resp, data := f.do(http.MethodGet, "/metrics", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics: %d", resp.StatusCode)
	}
	if !strings.Contains(string(data), `campuscore_service_operations_total{operation="campus.add",result="success"} 1`) {
		t.Fatalf("expected campus.add counter in %s", data)
	}
}

func TestImportRejectsOversizedBody(t *testing.T) {
	svc := core.NewService(memory.NewStore(core.NewDefaultRulesEngine()))
	routes := httpapi.NewHandler(svc, httpapi.WithImportLimit(64)).Routes()

	body := "Site;Floor;Code\n" + strings.Repeat("Main Hall;1;WC-1\n", 8)
	rec := httptest.NewRecorder()
	routes.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/import", strings.NewReader(body)))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || resp.Error.Code != "too_large" {
		t.Fatalf("unexpected error body %s", rec.Body.String())
	}
	campuses, err := svc.ListCampuses(context.Background())
	if err != nil || len(campuses) != 0 {
		t.Fatalf("oversized import must not write, got %d campuses (%v)", len(campuses), err)
	}

	rec = httptest.NewRecorder()
	routes.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/import", strings.NewReader("Main Hall;1;WC-1\n")))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected small import to pass, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestEmptyJSONBodyReachesService(t *testing.T) {
	f := newFixture(t)
	var resp errorBody
	f.expect(http.MethodPut, "/api/v1/tickets/t1/status", "", http.StatusBadRequest, &resp)
	if resp.Error.Code != "validation" || resp.Error.Field != "status" {
		t.Fatalf("expected status validation error for empty body, got %+v", resp)
	}
	f.expect(http.MethodPut, "/api/v1/tickets/t1/status", "{", http.StatusBadRequest, &resp)
	if resp.Error.Code != "invalid_json" {
		t.Fatalf("expected invalid_json for truncated body, got %+v", resp)
	}
}
