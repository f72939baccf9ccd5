package tee

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSaverTeesToClient(t *testing.T) {
	rr := httptest.NewRecorder()
	rs := NewResponseSaver(rr)

	rs.Header().Set("Content-Type", "application/json")
	rs.WriteHeader(http.StatusCreated)
	rs.Write([]byte(`{"ok":`))
	rs.Write([]byte(`true}`))

	if rr.Code != http.StatusCreated || rs.StatusCode() != http.StatusCreated {
		t.Fatalf("status client=%d saver=%d", rr.Code, rs.StatusCode())
	}
	if rr.Body.String() != `{"ok":true}` || string(rs.Body()) != `{"ok":true}` {
		t.Fatalf("body client=%s saver=%s", rr.Body.String(), rs.Body())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("Content-Type on client is %s", ct)
	}
}

func TestSaverImplicitOK(t *testing.T) {
	rr := httptest.NewRecorder()
	rs := NewResponseSaver(rr)
	rs.Write([]byte(`[]`))
	if rs.StatusCode() != http.StatusOK || rr.Code != http.StatusOK {
		t.Fatalf("status saver=%d client=%d", rs.StatusCode(), rr.Code)
	}
}

func TestSaverWithoutClient(t *testing.T) {
	rs := NewResponseSaver(nil)
	rs.WriteHeader(http.StatusNotFound)
	rs.Write([]byte(`{"error":"missing"}`))
	rs.Flush()
	if rs.StatusCode() != http.StatusNotFound || string(rs.Body()) != `{"error":"missing"}` {
		t.Fatalf("status %d body %s", rs.StatusCode(), rs.Body())
	}
}

func TestSaverIgnoresSecondWriteHeader(t *testing.T) {
	rr := httptest.NewRecorder()
	rs := NewResponseSaver(rr)
	rs.WriteHeader(http.StatusOK)
	rs.WriteHeader(http.StatusInternalServerError)
	if rs.StatusCode() != http.StatusOK {
		t.Fatalf("status is %d", rs.StatusCode())
	}
}

func TestFinishSendsHeadersWithoutBody(t *testing.T) {
	rr := httptest.NewRecorder()
	rs := NewResponseSaver(rr)
	rs.Header().Set("X-Recipe-Count", "0")

	rs.Finish()
	rs.Finish()

	if rr.Code != http.StatusOK || rs.StatusCode() != http.StatusOK {
		t.Fatalf("status client=%d saver=%d", rr.Code, rs.StatusCode())
	}
	if got := rr.Header().Get("X-Recipe-Count"); got != "0" {
		t.Fatalf("header on client is %q", got)
	}
}

func TestFinishKeepsWrittenStatus(t *testing.T) {
	rr := httptest.NewRecorder()
	rs := NewResponseSaver(rr)
	rs.WriteHeader(http.StatusNoContent)
	rs.Finish()
	if rr.Code != http.StatusNoContent {
		t.Fatalf("status is %d", rr.Code)
	}
}
