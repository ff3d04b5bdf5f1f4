package handlers

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"

	"projectmeasure/config"
	"projectmeasure/measurements"
	"projectmeasure/services"
	"projectmeasure/testhelpers"
)

// newTestRequestEvent creates a RequestEvent suitable for handler tests.
func newTestRequestEvent(app *pocketbase.PocketBase, req *http.Request, rec *httptest.ResponseRecorder) *core.RequestEvent {
	e := &core.RequestEvent{}
	e.App = app
	e.Request = req
	e.Response = rec
	return e
}

type apiFixture struct {
	app       *pocketbase.PocketBase
	svc       *measurements.Service
	project   *core.Record
	priceList *core.Record
	entry     *core.Record // piece @ 10
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	app := testhelpers.NewTestApp(t)
	svc := measurements.New(app, measurements.NewMemoryLocker(), nil, config.Config{
		DefaultVATRate:    services.DefaultVATRate,
		RollupConcurrency: 1,
	})
	project := testhelpers.CreateTestProject(t, app, "Tower A", "1000")
	priceList := testhelpers.CreateTestPriceList(t, app, "Civil 1403", "civil")
	return &apiFixture{
		app:       app,
		svc:       svc,
		project:   project,
		priceList: priceList,
		entry:     testhelpers.CreateTestEntry(t, app, priceList.Id, "160104", "Steel door", "عدد", "10.00"),
	}
}

// jsonRequest builds a request with a JSON body, the supervisor actor
// headers and the given path values.
func jsonRequest(method, target, body string, pathValues map[string]string) *http.Request {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(ActorIDHeader, "user-1")
	req.Header.Set(ActorRoleHeader, "supervisor")
	for k, v := range pathValues {
		req.SetPathValue(k, v)
	}
	return req
}

// serve runs handler against req and fails the test on a returned error.
func (f *apiFixture) serve(t *testing.T, handler func(*core.RequestEvent) error, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()

	rec := httptest.NewRecorder()
	e := newTestRequestEvent(f.app, req, rec)
	if err := handler(e); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	return rec
}
