package functions

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitechdev/ResolveSpec/pkg/sqlpage/reqctx"
)

func newRC(t *testing.T) *reqctx.RequestContext {
	t.Helper()
	r := httptest.NewRequest(http.MethodGet, "/page.sql?x=1", nil)
	r.SetBasicAuth("ada", "secret")
	r.AddCookie(&http.Cookie{Name: "session", Value: "abc123"})
	return reqctx.New(r)
}

func TestFnCookie_ReturnsCookieValue(t *testing.T) {
	rc := newRC(t)
	v, err := fnCookie(context.Background(), rc, []string{"session"})
	require.NoError(t, err)
	assert.Equal(t, "abc123", v)
}

func TestFnBasicAuth_ReturnsCredentials(t *testing.T) {
	rc := newRC(t)
	u, err := fnBasicAuthUsername(context.Background(), rc, nil)
	require.NoError(t, err)
	assert.Equal(t, "ada", u)

	p, err := fnBasicAuthPassword(context.Background(), rc, nil)
	require.NoError(t, err)
	assert.Equal(t, "secret", p)
}

func TestFnURLEncode_EscapesReservedCharacters(t *testing.T) {
	v, err := fnURLEncode(context.Background(), nil, []string{"a b&c"})
	require.NoError(t, err)
	assert.Equal(t, "a+b%26c", v)
}

func TestFnHashPassword_ProducesVerifiableArgon2idHash(t *testing.T) {
	v, err := fnHashPassword(context.Background(), nil, []string{"hunter2"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(v, "$argon2id$"))
}

func TestFnRandomString_RespectsRequestedLength(t *testing.T) {
	v, err := fnRandomString(context.Background(), nil, []string{"10"})
	require.NoError(t, err)
	assert.Len(t, v, 10)
}

func TestFnNotify_RequiresEventType(t *testing.T) {
	_, err := fnNotify(context.Background(), nil, nil)
	require.Error(t, err)
}

func TestFnNotify_FailsWithoutInitializedBroker(t *testing.T) {
	_, err := fnNotify(context.Background(), nil, []string{"orders.created", `{"id":1}`})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not initialized")
}

func TestFnExec_DisabledByDefault(t *testing.T) {
	Configure(Config{AllowExec: false})
	_, err := fnExec(context.Background(), nil, []string{"echo", "hi"})
	require.Error(t, err)
}

func TestFnReadFileAsDataURL_RejectsPathEscapingWebRoot(t *testing.T) {
	dir := t.TempDir()
	Configure(Config{WebRoot: dir})
	_, err := fnReadFileAsDataURL(context.Background(), nil, []string{"../../etc/passwd"})
	require.Error(t, err)
}

func TestFnReadFileAsDataURL_ReadsFileWithinWebRoot(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hi"), 0o644))
	Configure(Config{WebRoot: dir})
	v, err := fnReadFileAsDataURL(context.Background(), nil, []string{"a.txt"})
	require.NoError(t, err)
	assert.Contains(t, v, "data:")
	assert.Contains(t, v, "base64,")
}

func TestFnUploadedFilePath_RejectsMismatchedMimeType(t *testing.T) {
	rc := newRC(t)
	rc.Uploads["doc"] = reqctx.UploadedFile{FieldName: "doc", TempPath: "/tmp/x", MimeType: "image/png"}
	v, err := fnUploadedFilePath(context.Background(), rc, []string{"doc", "application/pdf"})
	require.NoError(t, err)
	assert.Empty(t, v)
}

func TestFnUploadedFilePath_ReturnsPathWhenMimeMatches(t *testing.T) {
	rc := newRC(t)
	rc.Uploads["doc"] = reqctx.UploadedFile{FieldName: "doc", TempPath: "/tmp/x", MimeType: "image/png"}
	v, err := fnUploadedFilePath(context.Background(), rc, []string{"doc", "image/png"})
	require.NoError(t, err)
	assert.Equal(t, "/tmp/x", v)
}

func TestRegistry_KnownReflectsRegisteredBuiltins(t *testing.T) {
	assert.True(t, Known("hash_password"))
	assert.True(t, Known("url_encode"))
	assert.False(t, Known("not_a_real_function"))
}
