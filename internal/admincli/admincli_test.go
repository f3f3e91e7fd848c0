package admincli

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/r9s-ai/open-data-router/internal/auth"
	"github.com/r9s-ai/open-data-router/pkg/datawrapper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	keys := writeFile(t, dir, "keys.yaml", "access_keys:\n  - {name: reader, value: ak-r, commands: [\"memberService.get*\"]}\n  - {value: ak-x}\n")
	cfg := writeFile(t, dir, "odr.yaml", "keys:\n  file: \""+keys+"\"\n")

	out, err := run(t, "", "validate", "config", "-c", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "config ok: listen=:3310 dispatch=/api hooks=default")

	out, err = run(t, "", "validate", "keys", "-c", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "access_keys=2")
	assert.Contains(t, out, "commands=memberService.get*")
	assert.Contains(t, out, "(unnamed)")

	bad := writeFile(t, dir, "bad.yaml", "converter:\n  name: nope\n")
	_, err = run(t, "", "validate", "config", "-c", bad)
	assert.Error(t, err)

	_, err = run(t, "", "validate", "keys", "--keys", filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestBuildEnvelope(t *testing.T) {
	b, err := buildEnvelope(nil, "cmd", []string{"memberService.searchMembers", "text=ad", "criteria:={\"active\":true}"})
	require.NoError(t, err)
	w, err := datawrapper.FromJSON(b)
	require.NoError(t, err)
	cmd, _ := w.GetString("cmd")
	assert.Equal(t, "memberService.searchMembers", cmd)
	text, _ := w.GetString("text")
	assert.Equal(t, "ad", text)
	_, ok := w.GetModel("criteria")
	assert.True(t, ok)

	b, err = buildEnvelope([]byte(`{"cmd":"systemService.echo","a":"1"}`), "cmd", []string{"a=2"})
	require.NoError(t, err)
	w, err = datawrapper.FromJSON(b)
	require.NoError(t, err)
	a, _ := w.GetString("a")
	assert.Equal(t, "2", a)

	_, err = buildEnvelope(nil, "cmd", []string{"a=1"})
	assert.Error(t, err)
	_, err = buildEnvelope(nil, "cmd", []string{"x.y", "novalue"})
	assert.Error(t, err)
	_, err = buildEnvelope(nil, "cmd", []string{"x.y", "m:={"})
	assert.Error(t, err)
}

func TestResolveURLAndKey(t *testing.T) {
	t.Setenv("ODR_URL", "")
	t.Setenv("ODR_API_KEY", "")
	assert.Equal(t, "http://127.0.0.1:3310/api", resolveURL("", nil))
	assert.Equal(t, "http://x/api", resolveURL(" http://x/api ", nil))

	dir := t.TempDir()
	cfg, err := loadConfigIfExists(writeFile(t, dir, "odr.yaml", "server:\n  listen: \"0.0.0.0:8080\"\ndispatch:\n  path: /rpc\nauth:\n  api_key: master\n"))
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8080/rpc", resolveURL("", cfg))
	assert.Equal(t, "master", resolveKey("", cfg))
	assert.Equal(t, "flag", resolveKey("flag", cfg))

	t.Setenv("ODR_API_KEY", "env")
	assert.Equal(t, "env", resolveKey("", cfg))

	missing, err := loadConfigIfExists(filepath.Join(dir, "none.yaml"))
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestCall(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		if gotBody["cmd"] == "nope.x" {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"_isDataWrapper":true,"status":"error","code":"SERVICE_NOT_FOUND"}`))
			return
		}
		_, _ = w.Write([]byte(`{"_isDataWrapper":true,"result":[{"id":"1","name":"Ada"}]}`))
	}))
	defer srv.Close()

	out, err := run(t, "", "call", "-c", "", "--url", srv.URL, "--key", "k1", "memberService.getAllMembers")
	require.NoError(t, err)
	assert.Equal(t, "Bearer k1", gotAuth)
	assert.Equal(t, "memberService.getAllMembers", gotBody["cmd"])
	assert.Contains(t, out, `"name": "Ada"`)

	out, err = run(t, "", "call", "-c", "", "--url", srv.URL, "-o", "table", "memberService.getAllMembers")
	require.NoError(t, err)
	assert.Contains(t, out, "result (1 rows)")
	assert.Contains(t, out, "Ada")

	out, err = run(t, `{"cmd":"nope.x"}`, "call", "-c", "", "--url", srv.URL, "-f", "-")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
	assert.Contains(t, out, "SERVICE_NOT_FOUND")

	_, err = run(t, "", "call", "-c", "", "--url", srv.URL, "-o", "xml", "a.b")
	assert.Error(t, err)
}

func TestTableCmd(t *testing.T) {
	out, err := run(t, `[{"id":"1","age":36}]`, "table")
	require.NoError(t, err)
	assert.Contains(t, out, "model (1 rows)")
	assert.Contains(t, out, "36")

	_, err = run(t, "  ", "table")
	assert.Error(t, err)
}

func TestTokenCreate(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "odr.yaml", "auth:\n  jwt:\n    secret: \"0123456789abcdef0123\"\n    issuer: odr\n")

	out, err := run(t, "", "token", "create", "-c", cfg, "--sub", "ops", "--cmds", "memberService.get*, systemService.*")
	require.NoError(t, err)
	raw := strings.TrimSpace(out)
	assert.True(t, auth.LooksLikeJWT(raw))

	tokens, err := auth.NewTokens(auth.TokenOptions{Secret: "0123456789abcdef0123", Issuer: "odr"})
	require.NoError(t, err)
	claims, err := tokens.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Subject)
	assert.Equal(t, []string{"memberService.get*", "systemService.*"}, claims.Commands)

	_, err = run(t, "", "token", "create", "-c", cfg)
	assert.Error(t, err)
	_, err = run(t, "", "token", "create", "-c", filepath.Join(dir, "none.yaml"), "--sub", "x")
	assert.Error(t, err)
}
