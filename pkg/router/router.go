package router

import (
	"errors"
	"net/http"
	"strings"

	"github.com/niels/tinyhttpd/pkg/message"
)

// ErrIOFailure indicates a filesystem operation failed after routing. The
// connection must be abandoned without a response.
var ErrIOFailure = errors.New("router: io failure")

// Route identifies which handler served a request
type Route string

const (
	// RouteEcho reflects the path suffix
	RouteEcho Route = "echo"
	// RouteFileGet serves a file from the directory
	RouteFileGet Route = "file_get"
	// RouteUserAgent reflects the User-Agent header
	RouteUserAgent Route = "user_agent"
	// RouteRoot answers 200 for "/"
	RouteRoot Route = "root"
	// RouteNotFound answers 404 for unknown GET paths
	RouteNotFound Route = "not_found"
	// RouteFilePost stores the request body in the directory
	RouteFilePost Route = "file_post"
	// RouteUnsupported leaves the default 400 response in place
	RouteUnsupported Route = "unsupported"
)

// Path prefixes and fixed paths
const (
	PrefixEcho     = "/echo/"
	PrefixFiles    = "/files/"
	PathUserAgent  = "/user-agent"
	PathRoot       = "/"
	NoUserAgentMsg = "no user agent in request header"
)

// Options configures a Router
type Options struct {
	// Directory is prepended verbatim to file names. Empty disables the
	// file routes.
	Directory string
	// AllowUnsafePaths disables the check that file names stay inside
	// Directory.
	AllowUnsafePaths bool
}

// Router dispatches a request to exactly one handler
type Router struct {
	options Options
}

// New creates a router
func New(options Options) *Router {
	return &Router{options: options}
}

// Route runs the first matching handler against resp. An error means resp
// must not be sent.
func (rt *Router) Route(req *message.Request, resp *message.Response) (Route, error) {
	method := req.Method()
	path := req.Path()

	switch method {
	case http.MethodGet:
		switch {
		case strings.HasPrefix(path, PrefixEcho):
			echo(path, resp)
			return RouteEcho, nil
		case strings.HasPrefix(path, PrefixFiles):
			return RouteFileGet, rt.getFile(path, resp)
		case path == PathUserAgent:
			userAgent(req, resp)
			return RouteUserAgent, nil
		case path == PathRoot:
			resp.SetStatus(http.StatusOK)
			return RouteRoot, nil
		default:
			resp.SetStatus(http.StatusNotFound)
			return RouteNotFound, nil
		}
	case http.MethodPost:
		if strings.HasPrefix(path, PrefixFiles) {
			return RouteFilePost, rt.postFile(req, path, resp)
		}
	}
	return RouteUnsupported, nil
}

func echo(path string, resp *message.Response) {
	resp.SetStatus(http.StatusOK)
	resp.SetBody(message.ContentTypeText, []byte(strings.TrimPrefix(path, PrefixEcho)))
}

func userAgent(req *message.Request, resp *message.Response) {
	agent, ok := req.Header(message.PrefixUserAgent)
	if !ok {
		agent = NoUserAgentMsg
	}
	resp.SetStatus(http.StatusOK)
	resp.SetBody(message.ContentTypeText, []byte(agent))
}
