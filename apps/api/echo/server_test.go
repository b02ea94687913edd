package echoapi

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andromeda0004/My-Tuition/core"
	"github.com/andromeda0004/My-Tuition/core/attendance"
	"github.com/andromeda0004/My-Tuition/core/report"
	testutil "github.com/andromeda0004/My-Tuition/tests"
)

func setup(t *testing.T) (*Server, *testutil.Store) {
	store := testutil.NewStore(t)
	srv := NewServer(&Deps{
		Conf:          store.Conf,
		Logger:        core.NewNopLogger(),
		Translator:    store.Translator,
		StudentSvc:    store.StudentSvc,
		FeeSvc:        store.FeeSvc,
		AttendanceSvc: store.AttendanceSvc,
		ReportSvc:     store.ReportSvc,
		ReminderSvc:   store.ReminderSvc,
	})
	return srv, store
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     string
	wantCode int
	wantData string
}

func newRequest(method, path string, data ...string) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.WriteString(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	return req, httptest.NewRecorder()
}

func do(srv *Server, method, path string, data ...string) *httptest.ResponseRecorder {
	req, rec := newRequest(method, path, data...)
	srv.ServeHTTP(rec, req)
	return rec
}

// decode returns the JSON body of rec as a generic map.
func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == "" {
		return
	}
	ok, err := testutil.JSONBytesEqual(t, rec.Body.Bytes(), []byte(tt.wantData))
	if err != nil {
		t.Errorf("JSONBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), tt.wantData)
	}
}

func TestHome(t *testing.T) {
	srv, _ := setup(t)
	rec := do(srv, http.MethodGet, "/")
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: `{"success":true,"message":"Welcome to My Tuition API!"}`}, rec)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestStudentAPI(t *testing.T) {
	srv, store := setup(t)

	rec := do(srv, http.MethodPost, "/api/students",
		`{"name":"Asha Rao","phone":"98765 43210","batch":"Morning","grade":8,"monthlyFees":1000,"yearlyFees":15000}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	data := body["data"].(map[string]interface{})
	id := data["id"].(string)
	assert.Equal(t, "monthly", data["feeStructure"])
	assert.Equal(t, 12000.0, data["totalFees"])
	assert.Equal(t, 0.0, data["paidFees"])
	assert.Equal(t, 12000.0, data["balanceFees"])

	testutil.RecordPayment(t, store, id, 2000)

	t.Run("validation", func(t *testing.T) {
		rec := do(srv, http.MethodPost, "/api/students", `{"phone":"123","batch":"Morning","grade":12}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		body := decode(t, rec)
		assert.Equal(t, false, body["success"])
		assert.Equal(t, validationFailed, body["message"])
		fields := body["error"].(map[string]interface{})
		assert.Equal(t, "this field is required", fields["name"])
		assert.Contains(t, fields, "phone")
		assert.Equal(t, "grade must be between 1 and 10", fields["grade"])
	})

	t.Run("malformed body", func(t *testing.T) {
		rec := do(srv, http.MethodPost, "/api/students", `{"name":`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("update recomputes and ignores derived fields", func(t *testing.T) {
		rec := do(srv, http.MethodPut, "/api/students/"+id, `{"grade":9,"paidFees":99999,"totalFees":1,"balanceFees":0}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		data := decode(t, rec)["data"].(map[string]interface{})
		assert.Equal(t, "yearly", data["feeStructure"])
		assert.Equal(t, 15000.0, data["totalFees"])
		assert.Equal(t, 2000.0, data["paidFees"])
		assert.Equal(t, 13000.0, data["balanceFees"])
	})

	t.Run("bulk", func(t *testing.T) {
		rec := do(srv, http.MethodPost, "/api/students/bulk", `[
			{"name":"Ravi Kumar","phone":"9876500001","batch":"Evening","grade":4,"monthlyFees":800},
			{"name":"Meena Iyer","phone":"9876500002","batch":"Evening","grade":10,"yearlyFees":18000}
		]`)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		assert.Equal(t, 2.0, decode(t, rec)["count"])
	})

	t.Run("query", func(t *testing.T) {
		rec := do(srv, http.MethodGet, "/api/students?ordering=-balanceFees")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		body := decode(t, rec)
		assert.Equal(t, 3.0, body["count"])
		first := body["data"].([]interface{})[0].(map[string]interface{})
		assert.Equal(t, "Meena Iyer", first["name"])

		rec = do(srv, http.MethodGet, "/api/students?batch=Evening&grade=4")
		assert.Equal(t, 1.0, decode(t, rec)["count"])

		rec = do(srv, http.MethodGet, "/api/students?search=zzz")
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: `{"success":true,"count":0,"data":[]}`}, rec)

		rec = do(srv, http.MethodGet, "/api/students?ordering=phone")
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = do(srv, http.MethodGet, "/api/students?grade=ten")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	tests := []httpTest{
		{name: "retrieve", method: http.MethodGet, path: "/api/students/" + id, wantCode: http.StatusOK},
		{
			name: "retrieve unknown", method: http.MethodGet, path: "/api/students/" + core.NewID(),
			wantCode: http.StatusNotFound, wantData: `{"success":false,"message":"student not found"}`,
		},
		{
			name: "retrieve malformed", method: http.MethodGet, path: "/api/students/42",
			wantCode: http.StatusNotFound, wantData: `{"success":false,"message":"student not found"}`,
		},
		{
			name: "delete", method: http.MethodDelete, path: "/api/students/" + id,
			wantCode: http.StatusOK, wantData: `{"success":true,"message":"Student deleted"}`,
		},
		{name: "delete again", method: http.MethodDelete, path: "/api/students/" + id, wantCode: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, do(srv, tt.method, tt.path, tt.body))
		})
	}
}

func TestFeeAPI(t *testing.T) {
	srv, store := setup(t)
	s := testutil.CreateStudent(t, store, "Asha Rao", "Morning", 5, 1000, 0)

	rec := do(srv, http.MethodPost, "/api/fees",
		`{"studentId":"`+s.ID+`","amountPaid":5000,"paymentDate":"2024-01-15","paymentMode":"UPI","notes":"term 1"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	data := body["data"].(map[string]interface{})
	payment := data["payment"].(map[string]interface{})
	paymentID := payment["id"].(string)
	assert.Equal(t, 5000.0, payment["amountPaid"])
	assert.Equal(t, "2024-01-15T00:00:00Z", payment["paymentDate"])
	updated := data["updatedStudent"].(map[string]interface{})
	assert.Equal(t, "Asha Rao", updated["name"])
	assert.Equal(t, 12000.0, updated["totalFees"])
	assert.Equal(t, 5000.0, updated["paidFees"])
	assert.Equal(t, 7000.0, updated["balanceFees"])

	t.Run("statement", func(t *testing.T) {
		rec := do(srv, http.MethodGet, "/api/fees/student/"+s.ID)
		require.Equal(t, http.StatusOK, rec.Code)
		data := decode(t, rec)["data"].(map[string]interface{})
		assert.Len(t, data["payments"], 1)
		assert.Equal(t, 7000.0, data["student"].(map[string]interface{})["balanceFees"])
	})

	t.Run("pending", func(t *testing.T) {
		rec := do(srv, http.MethodGet, "/api/fees/pending")
		require.Equal(t, http.StatusOK, rec.Code)
		body := decode(t, rec)
		assert.Equal(t, 1.0, body["count"])
		r := body["data"].([]interface{})[0].(map[string]interface{})
		assert.Equal(t, 7000.0, r["balanceFees"])
		assert.True(t, strings.HasPrefix(r["whatsappLink"].(string), "https://wa.me/919876543210?text=Dear%20Parent"))
	})

	t.Run("summary", func(t *testing.T) {
		rec := do(srv, http.MethodGet, "/api/fees/summary")
		require.Equal(t, http.StatusOK, rec.Code)
		data := decode(t, rec)["data"].(map[string]interface{})
		assert.Equal(t, 5000.0, data["totalCollected"])
	})

	tests := []httpTest{
		{
			name: "zero amount", method: http.MethodPost, path: "/api/fees",
			body:     `{"studentId":"` + s.ID + `","amountPaid":0}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name: "sub-paisa amount", method: http.MethodPost, path: "/api/fees",
			body:     `{"studentId":"` + s.ID + `","amountPaid":0.0000001}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name: "three decimals", method: http.MethodPost, path: "/api/fees",
			body:     `{"studentId":"` + s.ID + `","amountPaid":10.005}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name: "unknown student", method: http.MethodPost, path: "/api/fees",
			body:     `{"studentId":"` + core.NewID() + `","amountPaid":10}`,
			wantCode: http.StatusNotFound, wantData: `{"success":false,"message":"student not found"}`,
		},
		{
			name: "overpay", method: http.MethodPost, path: "/api/fees",
			body:     `{"studentId":"` + s.ID + `","amountPaid":7001}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name: "void", method: http.MethodDelete, path: "/api/fees/" + paymentID,
			wantCode: http.StatusOK, wantData: `{"success":true,"message":"Payment deleted"}`,
		},
		{
			name: "void twice", method: http.MethodDelete, path: "/api/fees/" + paymentID,
			wantCode: http.StatusNotFound, wantData: `{"success":false,"message":"payment not found"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, do(srv, tt.method, tt.path, tt.body))
		})
	}

	got, err := store.StudentSvc.Get(context.Background(), s.ID)
	require.NoError(t, err)
	assert.True(t, got.PaidFees.IsZero())
	assert.True(t, got.IsBalanced())
}

func TestAttendanceAPI(t *testing.T) {
	srv, store := setup(t)
	asha := testutil.CreateStudent(t, store, "Asha Rao", "Morning", 5, 1000, 0)
	ravi := testutil.CreateStudent(t, store, "Ravi Kumar", "Morning", 5, 1000, 0)

	markBody := `{"date":"2024-05-02","records":[{"studentId":"` + asha.ID + `","status":true},{"studentId":"` + ravi.ID + `","status":false}]}`
	rec := do(srv, http.MethodPost, "/api/attendance", markBody)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusOK,
		wantData: `{"success":true,"message":"Attendance marked","data":{"modified":0,"upserted":2,"total":2}}`,
	}, rec)

	rec = do(srv, http.MethodPost, "/api/attendance", markBody)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusOK,
		wantData: `{"success":true,"message":"Attendance marked","data":{"modified":0,"upserted":0,"total":2}}`,
	}, rec)

	rec = do(srv, http.MethodPost, "/api/attendance",
		`{"date":"2024-05-02","records":[{"studentId":"`+asha.ID+`","status":true},{"studentId":"`+asha.ID+`","status":false}]}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(srv, http.MethodPost, "/api/attendance", `{"date":"2024-05-02","records":[{"studentId":"`+core.NewID()+`","status":true}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(srv, http.MethodGet, "/api/attendance/date/2024-05-02")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, 2.0, body["count"])
	id := body["data"].([]interface{})[1].(map[string]interface{})["id"].(string)

	rec = do(srv, http.MethodGet, "/api/attendance/date/May-2")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(srv, http.MethodPut, "/api/attendance/"+id, `{"status":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["data"].(map[string]interface{})["status"])

	rec = do(srv, http.MethodPut, "/api/attendance/"+id, `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(srv, http.MethodGet, "/api/attendance/student/"+ravi.ID+"?startDate=2024-05-01&endDate=2024-05-31")
	require.Equal(t, http.StatusOK, rec.Code)
	data := decode(t, rec)["data"].(map[string]interface{})
	assert.Equal(t, 100.0, data["rate"])
	assert.Len(t, data["attendanceRecords"], 1)

	rec = do(srv, http.MethodDelete, "/api/attendance/"+id)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = do(srv, http.MethodDelete, "/api/attendance/"+id)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReportAPI(t *testing.T) {
	srv, store := setup(t)
	asha := testutil.CreateStudent(t, store, "Asha Rao", "Morning", 5, 1000, 0)
	testutil.RecordPayment(t, store, asha.ID, 1500, "2024-01-10")
	testutil.RecordPayment(t, store, asha.ID, 500, "2024-01-20")
	present := true
	_, err := store.AttendanceSvc.Mark(context.Background(), attendance.Mark{
		Date:    "2024-01-10",
		Records: []attendance.Entry{{StudentID: asha.ID, Status: &present}},
	})
	require.NoError(t, err)

	query := url.Values{"startDate": {"2024-01-01"}, "endDate": {"2024-01-31"}}

	rec := do(srv, http.MethodGet, "/api/dashboard")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1.0, decode(t, rec)["data"].(map[string]interface{})["totalStudents"])

	rec = do(srv, http.MethodGet, "/api/dashboard/batches")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1.0, decode(t, rec)["count"])

	rec = do(srv, http.MethodGet, "/api/dashboard/fees?"+query.Encode())
	require.Equal(t, http.StatusOK, rec.Code)
	summary := decode(t, rec)["data"].(map[string]interface{})["summary"].(map[string]interface{})
	assert.Equal(t, 2000.0, summary["totalAmount"])
	assert.Equal(t, 1000.0, summary["averagePerTransaction"])

	rec = do(srv, http.MethodGet, "/api/reports/fees")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(srv, http.MethodGet, "/api/reports/fees?"+query.Encode())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "All", decode(t, rec)["data"].(map[string]interface{})["batch"])

	rec = do(srv, http.MethodGet, "/api/reports/attendance?"+query.Encode()+"&batch=Morning")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1.0, decode(t, rec)["data"].(map[string]interface{})["totalStudents"])

	t.Run("fee csv export", func(t *testing.T) {
		rec := do(srv, http.MethodGet, "/api/reports/fees/export?"+query.Encode())
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, report.ContentTypeCSV, rec.Header().Get("Content-Type"))
		assert.Equal(t, `attachment; filename="fee_report_2024-01-01_to_2024-01-31.csv"`, rec.Header().Get("Content-Disposition"))
		rows, err := csv.NewReader(rec.Body).ReadAll()
		require.NoError(t, err)
		require.Len(t, rows, 4)
		assert.Equal(t, []string{"", "", "TOTAL", "2000", "", ""}, rows[3])
	})

	t.Run("attendance xlsx export", func(t *testing.T) {
		rec := do(srv, http.MethodGet, "/api/reports/attendance/export?"+query.Encode()+"&format=xlsx")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, `attachment; filename="attendance_report_2024-01-01_to_2024-01-31.xlsx"`, rec.Header().Get("Content-Disposition"))
		assert.NotZero(t, rec.Body.Len())
	})

	t.Run("unknown format", func(t *testing.T) {
		rec := do(srv, http.MethodGet, "/api/reports/fees/export?"+query.Encode()+"&format=pdf")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestReminderAPI(t *testing.T) {
	srv, store := setup(t)

	rec := do(srv, http.MethodGet, "/api/whatsapp/pending")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = do(srv, http.MethodPost, "/api/reminders/email")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	asha := testutil.CreateStudent(t, store, "Asha Rao", "Morning", 5, 1000, 0, "asha.parent@test.local")

	rec = do(srv, http.MethodGet, "/api/whatsapp/pending")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1.0, decode(t, rec)["count"])

	rec = do(srv, http.MethodGet, "/api/whatsapp/"+asha.ID)
	require.Equal(t, http.StatusOK, rec.Code)
	data := decode(t, rec)["data"].(map[string]interface{})
	assert.Contains(t, data["message"], "Asha Rao has pending fees of Rs.12000")

	rec = do(srv, http.MethodPost, "/api/whatsapp/custom/"+asha.ID, `{"message":"Exam on Monday"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	data = decode(t, rec)["data"].(map[string]interface{})
	assert.Equal(t, "https://wa.me/919876543210?text=Exam%20on%20Monday", data["whatsappLink"])

	rec = do(srv, http.MethodPost, "/api/whatsapp/custom/"+asha.ID, `{"message":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(srv, http.MethodPost, "/api/reminders/email/"+asha.ID)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	rec = do(srv, http.MethodPost, "/api/reminders/email")
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusAccepted,
		wantData: `{"success":true,"message":"Reminders queued","data":{"sent":1,"skipped":[]}}`,
	}, rec)
	assert.Len(t, store.Mailer.Sent(), 2)
}

func TestErrorHandler_Shutdown(t *testing.T) {
	srv, _ := setup(t)
	srv.app.GET("/boom", func(echo.Context) error {
		return core.NewShutdownError("integrity issue")
	})

	rec := do(srv, http.MethodGet, "/boom")
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusInternalServerError,
		wantData: `{"success":false,"message":"Internal Server Error"}`,
	}, rec)

	select {
	case <-srv.ShutdownSignal():
	default:
		t.Error("shutdown was not signaled")
	}
}
