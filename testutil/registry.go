package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"

	"gitlab.com/gitlab-org/registry-tag-purger/digest"
)

// Registry is an in-memory registry for a set of repositories.
type Registry struct {
	Server *httptest.Server

	// Username and Password enable basic authentication when set.
	Username string
	Password string
	// Token switches to bearer authentication: clients exchange their
	// credentials at /oauth2/token for Token, and get a refresh token too.
	Token string

	lock      sync.Mutex
	tokens    []TokenRequest
	tags      map[string]map[string]digest.Digest
	manifests map[string]map[digest.Digest]Payload
	fetches   map[digest.Digest]int
	deletes   []string
}

// TokenRequest is a request received by the token endpoint.
type TokenRequest struct {
	Method       string
	GrantType    string
	Scope        string
	RefreshToken string
}

const (
	tokenPath    = "/oauth2/token"
	tokenService = "test-registry"
)

func NewRegistry() *Registry {
	r := &Registry{
		tags:      make(map[string]map[string]digest.Digest),
		manifests: make(map[string]map[digest.Digest]Payload),
		fetches:   make(map[digest.Digest]int),
	}
	r.Server = httptest.NewServer(http.HandlerFunc(r.serveHTTP))
	return r
}

func (r *Registry) Close() {
	r.Server.Close()
}

func (r *Registry) URL() string {
	return r.Server.URL
}

// Push stores the payload and all children it was built from.
func (r *Registry) Push(repository string, payloads ...Payload) {
	r.lock.Lock()
	defer r.lock.Unlock()

	if r.manifests[repository] == nil {
		r.manifests[repository] = make(map[digest.Digest]Payload)
	}
	for _, payload := range payloads {
		r.manifests[repository][payload.Digest] = payload
	}
}

func (r *Registry) Tag(repository, tag string, payload Payload) {
	r.Push(repository, payload)

	r.lock.Lock()
	defer r.lock.Unlock()

	if r.tags[repository] == nil {
		r.tags[repository] = make(map[string]digest.Digest)
	}
	r.tags[repository][tag] = payload.Digest
}

func (r *Registry) Fetches(d digest.Digest) int {
	r.lock.Lock()
	defer r.lock.Unlock()

	return r.fetches[d]
}

// Deletes returns deleted references in the order they were deleted.
func (r *Registry) Deletes() []string {
	r.lock.Lock()
	defer r.lock.Unlock()

	return append([]string(nil), r.deletes...)
}

func (r *Registry) HasManifest(repository string, d digest.Digest) bool {
	r.lock.Lock()
	defer r.lock.Unlock()

	_, ok := r.manifests[repository][d]
	return ok
}

func (r *Registry) HasTag(repository, tag string) bool {
	r.lock.Lock()
	defer r.lock.Unlock()

	_, ok := r.tags[repository][tag]
	return ok
}

// RefreshToken is handed out together with Token.
func (r *Registry) RefreshToken() string {
	return "refresh-" + r.Token
}

// TokenRequests returns the requests received by the token endpoint.
func (r *Registry) TokenRequests() []TokenRequest {
	r.lock.Lock()
	defer r.lock.Unlock()

	return append([]TokenRequest(nil), r.tokens...)
}

func (r *Registry) serveHTTP(w http.ResponseWriter, req *http.Request) {
	switch {
	case r.Token != "" && req.URL.Path == tokenPath:
		r.serveToken(w, req)
		return

	case r.Token != "":
		if req.Header.Get("Authorization") != "Bearer "+r.Token {
			w.Header().Set("WWW-Authenticate", fmt.Sprintf(`Bearer realm="http://%s%s",service="%s"`, req.Host, tokenPath, tokenService))
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
			return
		}

	case r.Username != "":
		username, password, ok := req.BasicAuth()
		if !ok || username != r.Username || password != r.Password {
			w.Header().Set("WWW-Authenticate", `Basic realm="test-registry"`)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
	}

	path := req.URL.Path
	switch {
	case path == "/v2/" || path == "/v2":
		w.WriteHeader(http.StatusOK)

	case strings.HasPrefix(path, "/v2/") && strings.HasSuffix(path, "/tags/list"):
		repository := strings.TrimSuffix(strings.TrimPrefix(path, "/v2/"), "/tags/list")
		r.serveTags(w, repository)

	case strings.HasPrefix(path, "/v2/") && strings.Contains(path, "/manifests/"):
		idx := strings.LastIndex(path, "/manifests/")
		repository := path[len("/v2/"):idx]
		ref := path[idx+len("/manifests/"):]
		r.serveManifest(w, req, repository, ref)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (r *Registry) serveTags(w http.ResponseWriter, repository string) {
	r.lock.Lock()
	tags, ok := r.tags[repository]
	var names []string
	for name := range tags {
		names = append(names, name)
	}
	r.lock.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "NAME_UNKNOWN", "repository name not known to registry")
		return
	}

	sort.Strings(names)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"name": repository,
		"tags": names,
	})
}

func (r *Registry) resolve(repository, ref string) (digest.Digest, bool, bool) {
	if d, err := digest.Parse(ref); err == nil {
		_, ok := r.manifests[repository][d]
		return d, false, ok
	}

	d, ok := r.tags[repository][ref]
	return d, true, ok
}

func (r *Registry) serveManifest(w http.ResponseWriter, req *http.Request, repository, ref string) {
	r.lock.Lock()
	defer r.lock.Unlock()

	d, isTag, ok := r.resolve(repository, ref)
	if !ok {
		writeError(w, http.StatusNotFound, "MANIFEST_UNKNOWN", "manifest unknown")
		return
	}

	switch req.Method {
	case http.MethodHead, http.MethodGet:
		payload, ok := r.manifests[repository][d]
		if !ok {
			writeError(w, http.StatusNotFound, "MANIFEST_UNKNOWN", "manifest unknown")
			return
		}

		w.Header().Set("Content-Type", payload.MediaType)
		w.Header().Set("Docker-Content-Digest", d.String())
		w.Header().Set("Content-Length", strconv.Itoa(len(payload.Data)))
		if req.Method == http.MethodHead {
			w.WriteHeader(http.StatusOK)
			return
		}

		r.fetches[d]++
		w.WriteHeader(http.StatusOK)
		w.Write(payload.Data)

	case http.MethodDelete:
		if isTag {
			delete(r.tags[repository], ref)
		} else {
			delete(r.manifests[repository], d)
			for name, tagDigest := range r.tags[repository] {
				if tagDigest == d {
					delete(r.tags[repository], name)
				}
			}
		}
		r.deletes = append(r.deletes, ref)
		w.WriteHeader(http.StatusAccepted)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (r *Registry) serveToken(w http.ResponseWriter, req *http.Request) {
	var request TokenRequest
	authorized := false

	switch req.Method {
	case http.MethodGet:
		request = TokenRequest{Method: req.Method, Scope: req.URL.Query().Get("scope")}
		username, password, _ := req.BasicAuth()
		authorized = username == r.Username && password == r.Password

	case http.MethodPost:
		if err := req.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		request = TokenRequest{
			Method:       req.Method,
			GrantType:    req.PostForm.Get("grant_type"),
			Scope:        req.PostForm.Get("scope"),
			RefreshToken: req.PostForm.Get("refresh_token"),
		}
		switch request.GrantType {
		case "refresh_token":
			authorized = request.RefreshToken == r.RefreshToken()
		case "password":
			authorized = req.PostForm.Get("username") == r.Username && req.PostForm.Get("password") == r.Password
		}

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	r.lock.Lock()
	r.tokens = append(r.tokens, request)
	r.lock.Unlock()

	if !authorized || req.URL.Query().Get("service") != tokenService && req.PostForm.Get("service") != tokenService {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid credentials")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"token":         r.Token,
		"access_token":  r.Token,
		"refresh_token": r.RefreshToken(),
		"expires_in":    300,
	})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"errors": []map[string]string{{"code": code, "message": message}},
	})
}
