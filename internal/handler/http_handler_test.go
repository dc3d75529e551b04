package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CS3219-AY2324S1-G04/peerprep-room-service/internal/domain"
	"github.com/CS3219-AY2324S1-G04/peerprep-room-service/internal/idgen"
	"github.com/CS3219-AY2324S1-G04/peerprep-room-service/internal/repository"
	"github.com/CS3219-AY2324S1-G04/peerprep-room-service/internal/service"
	"github.com/CS3219-AY2324S1-G04/peerprep-room-service/pkg/database"
	"github.com/CS3219-AY2324S1-G04/peerprep-room-service/pkg/middleware"
)

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, *domain.RoomEvent) error { return nil }

// tokenResolver accepts credentials of the form "user-<id>".
type tokenResolver struct{}

func (tokenResolver) Resolve(credential string) (*middleware.Identity, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(credential, "user-"), 10, 64)
	if err != nil || !strings.HasPrefix(credential, "user-") {
		return nil, middleware.ErrUnauthorized
	}
	return &middleware.Identity{UserID: id, Username: "user" + strconv.FormatInt(id, 10)}, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields"`
	} `json:"error"`
}

type testServer struct {
	router *gin.Engine
	svc    service.RoomService
	now    time.Time
}

func setupServer(t *testing.T, production bool) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.New(&database.Config{
		Driver:       "sqlite",
		FilePath:     ":memory:",
		MaxOpenConns: 1,
	}, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, repository.Migrate(db))
	t.Cleanup(func() { _ = database.Close(db) })

	ts := &testServer{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	ts.svc = service.NewRoomService(
		repository.NewGormRoomRepository(db, time.Second),
		idgen.NewUUIDGenerator(),
		nopPublisher{},
		service.Options{LeaseLength: 5 * time.Minute, Clock: func() time.Time { return ts.now }},
	)

	h := NewHandler(ts.svc, middleware.NewAuthMiddleware(tokenResolver{}, ""), production)
	ts.router = gin.New()
	h.RegisterRoutes(ts.router)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, body, token string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.AddCookie(&http.Cookie{Name: middleware.DefaultCookieKey, Value: token})
	}

	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func (ts *testServer) createRoom(t *testing.T, body string) string {
	t.Helper()
	w, env := ts.do(t, http.MethodPost, "/room-service/rooms", body, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created domain.CreateRoomResponse
	require.NoError(t, json.Unmarshal(env.Data, &created))
	require.NotEmpty(t, created.RoomID)
	return created.RoomID
}

func TestCreateRoom_ThenGet(t *testing.T) {
	ts := setupServer(t, false)

	roomID := ts.createRoom(t, `{"user-ids":[1,2],"question-id":"q1","question-lang-slug":"python"}`)

	w, env := ts.do(t, http.MethodGet, "/room-service/rooms/"+roomID, "", "")
	require.Equal(t, http.StatusOK, w.Code)

	var room domain.RoomResponse
	require.NoError(t, json.Unmarshal(env.Data, &room))
	assert.Equal(t, roomID, room.RoomID)
	assert.Equal(t, []int64{1, 2}, room.UserIDs)
	assert.Equal(t, "q1", room.QuestionID)
	assert.Equal(t, "python", room.QuestionLangSlug)
	assert.True(t, room.ExpireAt.Equal(ts.now.Add(5*time.Minute)))
}

func TestCreateRoom_SingleUserID(t *testing.T) {
	ts := setupServer(t, false)

	roomID := ts.createRoom(t, `{"user-ids":7,"question-id":"q1"}`)

	room, err := ts.svc.GetRoom(context.Background(), roomID)
	require.NoError(t, err)
	assert.Equal(t, []int64{7}, room.MemberIDs)
	assert.Empty(t, room.QuestionLangSlug)
}

func TestCreateRoom_IntegralFloatUserIDs(t *testing.T) {
	ts := setupServer(t, false)

	roomID := ts.createRoom(t, `{"user-ids":[3.0,1e1],"question-id":"q1"}`)

	room, err := ts.svc.GetRoom(context.Background(), roomID)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 10}, room.MemberIDs)
}

func TestCreateRoom_Validation(t *testing.T) {
	ts := setupServer(t, false)

	tests := []struct {
		name   string
		body   string
		fields map[string]string
	}{
		{
			name:   "non integer user id",
			body:   `{"user-ids":["a"],"question-id":"q1"}`,
			fields: map[string]string{service.FieldUserIDs: "User ID must be an integer."},
		},
		{
			name:   "fractional user id",
			body:   `{"user-ids":[1.5],"question-id":"q1"}`,
			fields: map[string]string{service.FieldUserIDs: "User ID must be an integer."},
		},
		{
			name:   "non positive user id",
			body:   `{"user-ids":[0],"question-id":"q1"}`,
			fields: map[string]string{service.FieldUserIDs: "User ID must be a positive integer."},
		},
		{
			name:   "missing user ids",
			body:   `{"question-id":"q1"}`,
			fields: map[string]string{service.FieldUserIDs: "User IDs cannot be empty."},
		},
		{
			name:   "empty user ids",
			body:   `{"user-ids":[],"question-id":"q1"}`,
			fields: map[string]string{service.FieldUserIDs: "User IDs cannot be empty."},
		},
		{
			name:   "question id not a string",
			body:   `{"user-ids":[1],"question-id":5}`,
			fields: map[string]string{service.FieldQuestionID: "Question ID must be a string."},
		},
		{
			name:   "empty question id",
			body:   `{"user-ids":[1],"question-id":""}`,
			fields: map[string]string{service.FieldQuestionID: "Question ID cannot be empty."},
		},
		{
			name:   "blank question id",
			body:   `{"user-ids":[1],"question-id":"   "}`,
			fields: map[string]string{service.FieldQuestionID: "Question ID cannot be empty."},
		},
		{
			name:   "language slug not a string",
			body:   `{"user-ids":[1],"question-id":"q1","question-lang-slug":3}`,
			fields: map[string]string{service.FieldQuestionLangSlug: "Question language slug must be a string."},
		},
		{
			name:   "user id out of range",
			body:   `{"user-ids":[9223372036854775808],"question-id":"q1"}`,
			fields: map[string]string{service.FieldUserIDs: "User ID must be an integer."},
		},
		{
			name:   "quoted user id",
			body:   `{"user-ids":["4"],"question-id":"q1"}`,
			fields: map[string]string{service.FieldUserIDs: "User ID must be an integer."},
		},
		{
			name: "null body",
			body: `null`,
			fields: map[string]string{
				service.FieldUserIDs:    "User IDs cannot be empty.",
				service.FieldQuestionID: "Question ID cannot be empty.",
			},
		},
		{
			name:   "empty language slug",
			body:   `{"user-ids":[1],"question-id":"q1","question-lang-slug":""}`,
			fields: map[string]string{service.FieldQuestionLangSlug: "Question language slug cannot be empty."},
		},
		{
			name: "several fields",
			body: `{"user-ids":[-1]}`,
			fields: map[string]string{
				service.FieldUserIDs:    "User ID must be a positive integer.",
				service.FieldQuestionID: "Question ID must be a string.",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := ts.do(t, http.MethodPost, "/room-service/rooms", tt.body, "")
			assert.Equal(t, http.StatusBadRequest, w.Code)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.fields, env.Error.Fields)
		})
	}
}

func TestCreateRoom_BodyNotObject(t *testing.T) {
	ts := setupServer(t, false)

	for _, body := range []string{`[1,2]`, `"x"`, `not json`, ``} {
		w, env := ts.do(t, http.MethodPost, "/room-service/rooms", body, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		require.NotNil(t, env.Error, body)
		assert.Equal(t, "Body must be a JSON object.", env.Error.Message)
	}
}

func TestCreateRoom_AlreadyInRoom(t *testing.T) {
	ts := setupServer(t, false)
	ts.createRoom(t, `{"user-ids":[1,2],"question-id":"q1"}`)

	w, env := ts.do(t, http.MethodPost, "/room-service/rooms", `{"user-ids":[2,3],"question-id":"q2"}`, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "ALREADY_IN_ROOM", env.Error.Code)
	assert.Equal(t, "One or more users specified are already in a room.", env.Error.Fields[service.FieldUserIDs])
}

func TestGetRoom_NotFound(t *testing.T) {
	ts := setupServer(t, false)

	w, _ := ts.do(t, http.MethodGet, "/room-service/rooms/missing", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAuthRoutes_RequireCredential(t *testing.T) {
	ts := setupServer(t, false)

	for _, r := range []struct{ method, path string }{
		{http.MethodGet, "/room-service/room"},
		{http.MethodPatch, "/room-service/room/keep-alive"},
		{http.MethodDelete, "/room-service/room/user"},
	} {
		w, _ := ts.do(t, r.method, r.path, "", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code, r.path)

		w, _ = ts.do(t, r.method, r.path, "", "garbage")
		assert.Equal(t, http.StatusUnauthorized, w.Code, r.path)
	}
}

func TestGetMyRoom(t *testing.T) {
	ts := setupServer(t, false)
	roomID := ts.createRoom(t, `{"user-ids":[4,5],"question-id":"q1"}`)

	w, env := ts.do(t, http.MethodGet, "/room-service/room", "", "user-5")
	require.Equal(t, http.StatusOK, w.Code)
	var room domain.RoomResponse
	require.NoError(t, json.Unmarshal(env.Data, &room))
	assert.Equal(t, roomID, room.RoomID)

	w, _ = ts.do(t, http.MethodGet, "/room-service/room", "", "user-6")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetMyRoom_BearerHeader(t *testing.T) {
	ts := setupServer(t, false)
	ts.createRoom(t, `{"user-ids":[4],"question-id":"q1"}`)

	req := httptest.NewRequest(http.MethodGet, "/room-service/room", nil)
	req.Header.Set("Authorization", "Bearer user-4")
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestKeepAlive(t *testing.T) {
	ts := setupServer(t, false)
	ts.createRoom(t, `{"user-ids":[1,2],"question-id":"q1"}`)

	ts.now = ts.now.Add(2 * time.Minute)
	w, env := ts.do(t, http.MethodPatch, "/room-service/room/keep-alive", "", "user-1")
	require.Equal(t, http.StatusOK, w.Code)

	var resp domain.KeepAliveResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.True(t, resp.ExpireAt.Equal(ts.now.Add(5*time.Minute)))

	w, _ = ts.do(t, http.MethodPatch, "/room-service/room/keep-alive", "", "user-9")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLeaveRoom(t *testing.T) {
	ts := setupServer(t, false)
	roomID := ts.createRoom(t, `{"user-ids":[1,2],"question-id":"q1"}`)

	w, env := ts.do(t, http.MethodDelete, "/room-service/room/user", "", "user-1")
	require.Equal(t, http.StatusOK, w.Code)

	var room domain.RoomResponse
	require.NoError(t, json.Unmarshal(env.Data, &room))
	assert.Equal(t, roomID, room.RoomID)
	assert.Equal(t, []int64{2}, room.UserIDs)

	w, _ = ts.do(t, http.MethodDelete, "/room-service/room/user", "", "user-1")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteRoom_Development(t *testing.T) {
	ts := setupServer(t, false)
	roomID := ts.createRoom(t, `{"user-ids":[1],"question-id":"q1"}`)

	w, _ := ts.do(t, http.MethodDelete, "/room-service/rooms/"+roomID, "", "")
	assert.Equal(t, http.StatusOK, w.Code)

	_, err := ts.svc.GetRoom(context.Background(), roomID)
	assert.ErrorIs(t, err, service.ErrRoomNotFound)

	w, _ = ts.do(t, http.MethodDelete, "/room-service/rooms/"+roomID, "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteRoom_NotRegisteredInProduction(t *testing.T) {
	ts := setupServer(t, true)
	roomID := ts.createRoom(t, `{"user-ids":[1],"question-id":"q1"}`)

	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/room-service/rooms/"+roomID, nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	_, err := ts.svc.GetRoom(context.Background(), roomID)
	assert.NoError(t, err)
}
