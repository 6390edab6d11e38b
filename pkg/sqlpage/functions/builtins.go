package functions

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/argon2"

	"github.com/bitechdev/ResolveSpec/pkg/eventbroker"
	"github.com/bitechdev/ResolveSpec/pkg/logger"
	"github.com/bitechdev/ResolveSpec/pkg/sqlpage/reqctx"
)

func registerBuiltins(r *Registry) {
	r.Register("cookie", fnCookie)
	r.Register("header", fnHeader)
	r.Register("basic_auth_username", fnBasicAuthUsername)
	r.Register("basic_auth_password", fnBasicAuthPassword)
	r.Register("hash_password", fnHashPassword)
	r.Register("variables", fnVariables)
	r.Register("path", fnPath)
	r.Register("url_encode", fnURLEncode)
	r.Register("random_string", fnRandomString)
	r.Register("environment_variable", fnEnvironmentVariable)
	r.Register("current_working_directory", fnCWD)
	r.Register("version", fnVersion)
	r.Register("read_file_as_data_url", fnReadFileAsDataURL)
	r.Register("uploaded_file_path", fnUploadedFilePath)
	r.Register("uploaded_file_mime_type", fnUploadedFileMimeType)
	r.Register("exec", fnExec)
	r.Register("fetch", fnFetch)
	r.Register("notify", fnNotify)
}

func arg(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

func fnCookie(_ context.Context, rc *reqctx.RequestContext, args []string) (string, error) {
	v, _ := rc.Cookie(arg(args, 0))
	return v, nil
}

func fnHeader(_ context.Context, rc *reqctx.RequestContext, args []string) (string, error) {
	v, _ := rc.Header(arg(args, 0))
	return v, nil
}

func fnBasicAuthUsername(_ context.Context, rc *reqctx.RequestContext, _ []string) (string, error) {
	return rc.BasicAuthUser, nil
}

func fnBasicAuthPassword(_ context.Context, rc *reqctx.RequestContext, _ []string) (string, error) {
	return rc.BasicAuthPass, nil
}

// argon2id parameters follow the OWASP-recommended minimum for interactive
// login flows.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
)

func fnHashPassword(ctx context.Context, _ *reqctx.RequestContext, args []string) (string, error) {
	password := arg(args, 0)
	return defaultCPUPool.Submit(ctx, func() (string, error) {
		salt := make([]byte, 16)
		if _, err := rand.Read(salt); err != nil {
			return "", err
		}
		hash := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
		encoded := fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
			argon2.Version, argonMemory, argonTime, argonThreads,
			base64.RawStdEncoding.EncodeToString(salt),
			base64.RawStdEncoding.EncodeToString(hash))
		return encoded, nil
	})
}

func fnVariables(_ context.Context, rc *reqctx.RequestContext, args []string) (string, error) {
	which := arg(args, 0)
	var m map[string]string
	switch which {
	case "post":
		m = rc.Post.Map()
	default:
		m = rc.Get.Map()
	}
	// encoding/json, not tidwall/sjson: sjson's API builds JSON by applying
	// surgical path-sets one at a time, which is the wrong shape for
	// marshaling an arbitrary-size map in one pass.
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func fnPath(_ context.Context, rc *reqctx.RequestContext, _ []string) (string, error) {
	return rc.Path, nil
}

func fnURLEncode(_ context.Context, _ *reqctx.RequestContext, args []string) (string, error) {
	return url.QueryEscape(arg(args, 0)), nil
}

func fnRandomString(_ context.Context, _ *reqctx.RequestContext, args []string) (string, error) {
	n := 32
	if s := arg(args, 0); s != "" {
		if parsed, err := strconv.Atoi(s); err == nil && parsed > 0 {
			n = parsed
		}
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf)[:n], nil
}

func fnEnvironmentVariable(_ context.Context, _ *reqctx.RequestContext, args []string) (string, error) {
	return os.Getenv(arg(args, 0)), nil
}

func fnCWD(_ context.Context, _ *reqctx.RequestContext, _ []string) (string, error) {
	return os.Getwd()
}

func fnVersion(_ context.Context, _ *reqctx.RequestContext, _ []string) (string, error) {
	return defaultConfig.Version, nil
}

func fnReadFileAsDataURL(_ context.Context, _ *reqctx.RequestContext, args []string) (string, error) {
	rel := arg(args, 0)
	full := filepath.Join(defaultConfig.WebRoot, rel)
	if !isWithinRoot(defaultConfig.WebRoot, full) {
		return "", fmt.Errorf("path escapes web root: %s", rel)
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return "", err
	}
	mimeType := mime.TypeByExtension(filepath.Ext(full))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data)), nil
}

func isWithinRoot(root, path string) bool {
	if root == "" {
		return true
	}
	rootAbs, err1 := filepath.Abs(root)
	pathAbs, err2 := filepath.Abs(path)
	if err1 != nil || err2 != nil {
		return false
	}
	rel, err := filepath.Rel(rootAbs, pathAbs)
	if err != nil {
		return false
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	return true
}

func fnUploadedFilePath(_ context.Context, rc *reqctx.RequestContext, args []string) (string, error) {
	name := arg(args, 0)
	allowedMime := arg(args, 1)
	up, ok := rc.Uploads[name]
	if !ok {
		return "", nil
	}
	if allowedMime != "" && up.MimeType != allowedMime {
		return "", nil
	}
	return up.TempPath, nil
}

func fnUploadedFileMimeType(_ context.Context, rc *reqctx.RequestContext, args []string) (string, error) {
	up, ok := rc.Uploads[arg(args, 0)]
	if !ok {
		return "", nil
	}
	return up.MimeType, nil
}

func fnExec(ctx context.Context, _ *reqctx.RequestContext, args []string) (string, error) {
	if !defaultConfig.AllowExec {
		return "", fmt.Errorf("sqlpage.exec is disabled (allow_exec=false)")
	}
	if len(args) == 0 {
		return "", fmt.Errorf("sqlpage.exec requires a command")
	}
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	out, err := cmd.Output()
	if err != nil {
		logger.Warn("sqlpage.exec failed for %s: %v", args[0], err)
		return "", err
	}
	return string(out), nil
}

func fnFetch(ctx context.Context, _ *reqctx.RequestContext, args []string) (string, error) {
	target := arg(args, 0)
	if err := defaultConfig.FetchLimiter.Wait(ctx); err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", err
	}
	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// fnNotify publishes an application event through the configured event
// broker: sqlpage.notify('orders.created', payload_json). A broker that was
// never initialized (EventBrokerConfig.Enabled=false) makes this a no-op
// error the caller can choose to ignore with sqlpage.notify(...) || ''.
func fnNotify(ctx context.Context, _ *reqctx.RequestContext, args []string) (string, error) {
	eventType := arg(args, 0)
	if eventType == "" {
		return "", fmt.Errorf("sqlpage.notify requires an event type")
	}
	evt := eventbroker.NewEvent(eventbroker.EventSourceFrontend, eventType)
	if payload := arg(args, 1); payload != "" {
		evt.Payload = json.RawMessage(payload)
	}
	if err := eventbroker.PublishAsync(ctx, evt); err != nil {
		logger.Warn("sqlpage.notify failed for %s: %v", eventType, err)
		return "", err
	}
	return evt.ID, nil
}
