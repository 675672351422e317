package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"school-server-go/config"
	"school-server-go/db"
	"school-server-go/handlers"
	"school-server-go/models"
	"school-server-go/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type envelope struct {
	Status     string          `json:"status"`
	StatusCode int             `json:"status_code"`
	Data       json.RawMessage `json:"data"`
	Message    string          `json:"message"`
}

func setup() *httptest.Server {
	conn := &db.Conn{Backend: "memory"}
	return setupConn(conn)
}

func setupConn(conn *db.Conn) *httptest.Server {
	staff := service.New[models.Staff](
		db.NewStore[models.Staff](conn, service.StaffSchema.Collection, service.StaffSchema.UniqueColumns()...),
		service.StaffSchema)
	students := service.New[models.Student](
		db.NewStore[models.Student](conn, service.StudentSchema.Collection),
		service.StudentSchema)
	return httptest.NewServer(handlers.NewRouter(staff, students))
}

func do(t *testing.T, method, url string, body any) (int, envelope) {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, r)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func decodeList(t *testing.T, env envelope) []map[string]any {
	t.Helper()
	var items []map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &items))
	return items
}

func TestStaffAddScenario(t *testing.T) {
	ts := setup()
	defer ts.Close()

	code, env := do(t, "POST", ts.URL+"/staff/add", map[string]any{"first_name": "Sam", "phonenumber": "555"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Success", env.Status)
	assert.Equal(t, 200, env.StatusCode)
	var rec map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &rec))
	assert.NotZero(t, rec["id"])
	assert.Equal(t, "555", rec["phonenumber"])

	code, env = do(t, "POST", ts.URL+"/staff/add", map[string]any{"first_name": "Kim", "phonenumber": "555"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "Error", env.Status)
	assert.Equal(t, 409, env.StatusCode)
	assert.Equal(t, "Staff with the given phone number already exists.", env.Message)

	code, env = do(t, "GET", ts.URL+"/staff/retrieve", nil)
	require.Equal(t, http.StatusOK, code)
	items := decodeList(t, env)
	require.Len(t, items, 1)
	assert.Equal(t, "Sam", items[0]["first_name"])
}

func TestCreateMissingFirstName(t *testing.T) {
	ts := setup()
	defer ts.Close()

	for _, path := range []string{"/staff/add", "/students/add"} {
		code, env := do(t, "POST", ts.URL+path, map[string]any{"last_name": "Doe"})
		assert.Equal(t, http.StatusBadRequest, code, path)
		assert.Equal(t, 400, env.StatusCode)
		assert.Equal(t, "Fill in the First Name", env.Message)

		// empty body is reported the same way
		code, env = do(t, "POST", ts.URL+path, nil)
		assert.Equal(t, http.StatusBadRequest, code, path)
		assert.Equal(t, "Fill in the First Name", env.Message)
	}

	_, env := do(t, "GET", ts.URL+"/staff/retrieve", nil)
	assert.Empty(t, decodeList(t, env))
}

func TestMalformedBody(t *testing.T) {
	ts := setup()
	defer ts.Close()

	code, env := do(t, "POST", ts.URL+"/students/add", map[string]any{"first_name": "Al", "status": "yes"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Error", env.Status)
}

func TestStudentRetrieveFilter(t *testing.T) {
	ts := setup()
	defer ts.Close()

	for _, name := range []string{"Alice", "Natalie"} {
		code, _ := do(t, "POST", ts.URL+"/students/add", map[string]any{"first_name": name})
		require.Equal(t, http.StatusOK, code)
	}

	code, env := do(t, "GET", ts.URL+"/students/retrieve?first_name=lie", nil)
	require.Equal(t, http.StatusOK, code)
	items := decodeList(t, env)
	require.Len(t, items, 1)
	assert.Equal(t, "Natalie", items[0]["first_name"])
	assert.Equal(t, false, items[0]["status"])

	_, env = do(t, "GET", ts.URL+"/students/retrieve?first_name=zzz", nil)
	assert.Equal(t, "[]", string(env.Data))

	_, env = do(t, "GET", ts.URL+"/students/retrieve", nil)
	assert.Len(t, decodeList(t, env), 2)
}

func TestUpdate(t *testing.T) {
	ts := setup()
	defer ts.Close()

	body := map[string]any{"first_name": "Alice", "class": "5B", "status": true}
	_, env := do(t, "POST", ts.URL+"/students/add", body)
	var rec models.Student
	require.NoError(t, json.Unmarshal(env.Data, &rec))
	id := models.FormatID(rec.ID)

	code, env := do(t, "PUT", ts.URL+"/students/update/"+id, body)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Info", env.Status)
	assert.Equal(t, 200, env.StatusCode)
	assert.Equal(t, "No changes were made to the student data.", env.Message)

	code, env = do(t, "PUT", ts.URL+"/students/update/"+id, map[string]any{"first_name": "Alice", "class": "6A"})
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Success", env.Status)
	assert.Equal(t, "Student was updated successfully.", env.Message)

	_, env = do(t, "GET", ts.URL+"/students/retrieve", nil)
	items := decodeList(t, env)
	assert.Equal(t, "6A", items[0]["class"])
	assert.Equal(t, false, items[0]["status"])

	code, env = do(t, "PUT", ts.URL+"/students/update/999", body)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Student with id=999 not found.", env.Message)

	code, env = do(t, "PUT", ts.URL+"/students/update/abc-123", body)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Invalid ID format", env.Message)

	code, _ = do(t, "PUT", ts.URL+"/staff/update/abc-123", map[string]any{"first_name": "Sam"})
	assert.Equal(t, http.StatusNotFound, code)

	code, env = do(t, "PUT", ts.URL+"/students/update/"+id, map[string]any{"class": "7"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Fill in the First Name", env.Message)
}

func TestDelete(t *testing.T) {
	ts := setup()
	defer ts.Close()

	_, env := do(t, "POST", ts.URL+"/staff/add", map[string]any{"first_name": "Sam"})
	var rec models.Staff
	require.NoError(t, json.Unmarshal(env.Data, &rec))
	id := models.FormatID(rec.ID)

	code, env := do(t, "DELETE", ts.URL+"/staff/delete/"+id, nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Staff was deleted successfully!", env.Message)

	code, env = do(t, "DELETE", ts.URL+"/staff/delete/"+id, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Cannot delete Staff with id="+id+". Staff not found!", env.Message)

	code, _ = do(t, "DELETE", ts.URL+"/students/delete/abc-123", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

// brokenStore fails every call.
type brokenStore[T any] struct{}

var errBroken = errors.New("database is locked")

func (brokenStore[T]) FindBy(context.Context, string, any) (*T, error) { return nil, errBroken }
func (brokenStore[T]) List(context.Context, string, string) ([]T, error) { return nil, errBroken }
func (brokenStore[T]) Get(context.Context, string) (*T, error) { return nil, errBroken }
func (brokenStore[T]) Create(context.Context, *T) error { return errBroken }
func (brokenStore[T]) Update(context.Context, string, map[string]any) error { return errBroken }
func (brokenStore[T]) Delete(context.Context, string) (int64, error) { return 0, errBroken }
func (brokenStore[T]) Ping(context.Context) error { return errBroken }

func TestStoreFailureStatusCodes(t *testing.T) {
	staff := service.New[models.Staff](brokenStore[models.Staff]{}, service.StaffSchema)
	students := service.New[models.Student](brokenStore[models.Student]{}, service.StudentSchema)
	ts := httptest.NewServer(handlers.NewRouter(staff, students))
	defer ts.Close()

	tests := []struct {
		method, path string
		body         any
		want         int
	}{
		{"POST", "/staff/add", map[string]any{"first_name": "Sam", "phonenumber": "1"}, 500},
		{"POST", "/staff/add", map[string]any{"first_name": "Sam"}, 400},
		{"POST", "/students/add", map[string]any{"first_name": "Al"}, 400},
		{"GET", "/staff/retrieve", nil, 400},
		{"GET", "/students/retrieve?first_name=x", nil, 400},
		{"PUT", "/staff/update/1", map[string]any{"first_name": "Sam"}, 500},
		{"PUT", "/students/update/1", map[string]any{"first_name": "Al"}, 500},
		{"DELETE", "/staff/delete/1", nil, 500},
		{"DELETE", "/students/delete/1", nil, 500},
		{"GET", "/ping", nil, 503},
	}
	for _, tt := range tests {
		code, env := do(t, tt.method, ts.URL+tt.path, tt.body)
		assert.Equal(t, tt.want, code, "%s %s", tt.method, tt.path)
		assert.Equal(t, tt.want, env.StatusCode, "%s %s", tt.method, tt.path)
		assert.Equal(t, "database is locked", env.Message)
	}
}

func TestPingAndNoRoute(t *testing.T) {
	ts := setup()
	defer ts.Close()

	code, env := do(t, "GET", ts.URL+"/ping", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Pong!", env.Message)

	code, env = do(t, "GET", ts.URL+"/nope", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Error", env.Status)
}

func TestImportAndExport(t *testing.T) {
	ts := setup()
	defer ts.Close()

	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]interface{}{"first_name", "phonenumber"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]interface{}{"Sam", "555"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A3", &[]interface{}{"Kim", "555"}))
	xlsx, err := f.WriteToBuffer()
	require.NoError(t, err)
	require.NoError(t, f.Close())

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "staff.xlsx")
	require.NoError(t, err)
	_, err = io.Copy(part, xlsx)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(ts.URL+"/staff/import", mw.FormDataContentType(), &body)
	require.NoError(t, err)
	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var result service.ImportResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, 1, result.Imported)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, 3, result.Failed[0].Row)

	code, env := do(t, "POST", ts.URL+"/staff/import", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	resp, err = http.Get(ts.URL + "/staff/export")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "staff.xlsx")
	out, err := excelize.OpenReader(resp.Body)
	require.NoError(t, err)
	defer out.Close()
	rows, err := out.GetRows("Sheet1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Sam", rows[1][1])
}

func TestGormBackendScenario(t *testing.T) {
	cfg := &config.Config{
		Store:    config.StoreConfig{Backend: "gorm"},
		Database: config.DatabaseConfig{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "school.db")},
	}
	conn, err := db.Connect(context.Background(), cfg)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.MigrateUp(context.Background()))

	ts := setupConn(conn)
	defer ts.Close()

	code, env := do(t, "POST", ts.URL+"/staff/add", map[string]any{"first_name": "Sam", "phonenumber": "555"})
	require.Equal(t, http.StatusOK, code)
	var rec models.Staff
	require.NoError(t, json.Unmarshal(env.Data, &rec))
	assert.NotZero(t, rec.ID)

	code, _ = do(t, "POST", ts.URL+"/staff/add", map[string]any{"first_name": "Sam", "phonenumber": "555"})
	assert.Equal(t, http.StatusConflict, code)

	_, env = do(t, "GET", ts.URL+"/staff/retrieve?first_name=am", nil)
	assert.Len(t, decodeList(t, env), 1)

	code, env = do(t, "PUT", ts.URL+"/staff/update/"+models.FormatID(rec.ID), map[string]any{"first_name": "Sam", "phonenumber": "555"})
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Info", env.Status)

	code, _ = do(t, "DELETE", ts.URL+"/staff/delete/"+models.FormatID(rec.ID), nil)
	assert.Equal(t, http.StatusOK, code)

	_, env = do(t, "GET", ts.URL+"/staff/retrieve", nil)
	assert.Empty(t, decodeList(t, env))
}
