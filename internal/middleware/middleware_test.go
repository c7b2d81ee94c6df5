package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yukikurage/taskboard/internal/constants"
	"github.com/yukikurage/taskboard/internal/models"
	"github.com/yukikurage/taskboard/internal/services"
)

type tokenMap map[string]*models.User

func (m tokenMap) ResolveActor(token string) (*models.User, error) {
	return m[token], nil
}

type taskMap map[uint64]*models.Task

func (m taskMap) GetTask(id uint64) (*models.Task, error) {
	if task, ok := m[id]; ok {
		return task, nil
	}
	return nil, services.ErrTaskNotFound
}

type userMap map[uint64]*models.User

func (m userMap) GetUser(id uint64) (*models.User, error) {
	if user, ok := m[id]; ok {
		return user, nil
	}
	return nil, services.ErrUserNotFound
}

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(resolver ActorResolver) *gin.Engine {
	r := gin.New()
	r.Use(sessions.Sessions(constants.SessionCookieName, cookie.NewStore([]byte("test-secret"))))
	r.Use(ResolveActor(resolver))
	r.POST("/login/:token", func(c *gin.Context) {
		session := sessions.Default(c)
		session.Set(constants.SessionKeyAuthToken, c.Param("token"))
		if err := session.Save(); err != nil {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.Status(http.StatusNoContent)
	})
	r.GET("/whoami", func(c *gin.Context) {
		actor := GetActor(c)
		if actor == nil {
			c.String(http.StatusOK, "anonymous")
			return
		}
		c.String(http.StatusOK, actor.Name)
	})
	r.GET("/private", RequireActor(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func TestResolveActor_Sources(t *testing.T) {
	alice := &models.User{ID: 1, Name: "alice"}
	bob := &models.User{ID: 2, Name: "bob"}
	r := newRouter(tokenMap{"alice-token": alice, "bob-token": bob})

	whoami := func(setup func(*http.Request)) string {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		setup(req)
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
		return w.Body.String()
	}

	assert.Equal(t, "anonymous", whoami(func(*http.Request) {}))
	assert.Equal(t, "alice", whoami(func(req *http.Request) {
		req.Header.Set(constants.HeaderAuthentication, "alice-token")
	}))
	assert.Equal(t, "bob", whoami(func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer bob-token")
	}))
	assert.Equal(t, "anonymous", whoami(func(req *http.Request) {
		req.Header.Set(constants.HeaderAuthentication, "ALICE-TOKEN")
	}))

	// The session wins over headers.
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/login/bob-token", nil))
	require.Equal(t, http.StatusNoContent, w.Code)
	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)

	assert.Equal(t, "bob", whoami(func(req *http.Request) {
		for _, c := range cookies {
			req.AddCookie(c)
		}
		req.Header.Set(constants.HeaderAuthentication, "alice-token")
	}))
}

func TestRequireActor(t *testing.T) {
	r := newRouter(tokenMap{"alice-token": {ID: 1, Name: "alice"}})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/private", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set(constants.HeaderAuthentication, "alice-token")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLoadTaskAndUser(t *testing.T) {
	r := gin.New()
	r.GET("/tasks/:id", LoadTask(taskMap{7: {ID: 7, Name: "seven"}}), func(c *gin.Context) {
		c.String(http.StatusOK, GetTask(c).Name)
	})
	r.GET("/users/:id", LoadUser(userMap{3: {ID: 3, Name: "carol"}}), func(c *gin.Context) {
		c.String(http.StatusOK, GetUser(c).Name)
	})

	cases := []struct {
		path string
		code int
		body string
	}{
		{"/tasks/7", http.StatusOK, "seven"},
		{"/tasks/8", http.StatusNotFound, ""},
		{"/tasks/abc", http.StatusNotFound, ""},
		{"/users/3", http.StatusOK, "carol"},
		{"/users/4", http.StatusNotFound, ""},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tc.path, nil))
		assert.Equal(t, tc.code, w.Code, tc.path)
		if tc.body != "" {
			assert.Equal(t, tc.body, w.Body.String())
		}
	}
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(constants.ContextKeyRequestID))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	generated := w.Header().Get(constants.HeaderRequestID)
	_, err := uuid.Parse(generated)
	require.NoError(t, err)
	assert.Equal(t, generated, w.Body.String())

	incoming := uuid.NewString()
	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(constants.HeaderRequestID, incoming)
	r.ServeHTTP(w, req)
	assert.Equal(t, incoming, w.Header().Get(constants.HeaderRequestID))

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(constants.HeaderRequestID, "not a uuid\n")
	r.ServeHTTP(w, req)
	assert.NotEqual(t, "not a uuid\n", w.Header().Get(constants.HeaderRequestID))
}

func TestRateLimit(t *testing.T) {
	limiter := NewIPRateLimiter(0.001, 2, time.Minute)
	r := gin.New()
	r.POST("/login", RateLimit(limiter), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	codes := make([]int, 3)
	for i := range codes {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/login", nil))
		codes[i] = w.Code
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestBodyLimit(t *testing.T) {
	r := gin.New()
	r.POST("/", BodyLimit(8), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("small")))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("far too large")))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}
