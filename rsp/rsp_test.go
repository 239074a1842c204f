package rsp

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rustlet-web/rustlet/http"
	"github.com/rustlet-web/rustlet/http/status"
)

func TestParseDocument(t *testing.T) {
	t.Run("literals and invocations interleave", func(t *testing.T) {
		doc, err := ParseDocument([]byte("<html><@=header>mid<@=footer></html>"))
		require.NoError(t, err)
		require.Equal(t, []Segment{
			{Literal: "<html>"},
			{Invoke: "header"},
			{Literal: "mid"},
			{Invoke: "footer"},
			{Literal: "</html>"},
		}, doc.Segments())
	})

	t.Run("pure literal document", func(t *testing.T) {
		doc, err := ParseDocument([]byte("plain text, no tags"))
		require.NoError(t, err)
		require.Len(t, doc.Segments(), 1)
	})

	t.Run("adjacent tags", func(t *testing.T) {
		doc, err := ParseDocument([]byte("<@=a><@=b>"))
		require.NoError(t, err)
		require.Equal(t, []Segment{{Invoke: "a"}, {Invoke: "b"}}, doc.Segments())
	})

	t.Run("unterminated tag", func(t *testing.T) {
		_, err := ParseDocument([]byte("before<@=name"))
		require.ErrorIs(t, err, status.ErrMalformedDocument)
	})

	t.Run("empty tag name", func(t *testing.T) {
		_, err := ParseDocument([]byte("<@=>"))
		require.ErrorIs(t, err, status.ErrMalformedDocument)
	})

	t.Run("whitespace in tag name", func(t *testing.T) {
		_, err := ParseDocument([]byte("<@=two words>"))
		require.ErrorIs(t, err, status.ErrMalformedDocument)
	})
}

type invokerFunc func(name string, request *http.Request) error

func (f invokerFunc) Invoke(name string, request *http.Request) error {
	return f(name, request)
}

func newTestInterpreter(t *testing.T, invoker Invoker) (*Interpreter, string) {
	root := t.TempDir()

	interpreter, err := NewInterpreter(root, invoker, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = interpreter.Close() })

	return interpreter, root
}

func TestInterpreterServe(t *testing.T) {
	invoker := invokerFunc(func(name string, request *http.Request) error {
		switch name {
		case "header":
			request.Respond().WriteString("H")
		case "footer":
			request.Respond().WriteString("F")
		default:
			return status.ErrUnknownRustlet
		}

		return nil
	})

	t.Run("renders in source order", func(t *testing.T) {
		interpreter, root := newTestInterpreter(t, invoker)
		writeFile(t, root, "page.rsp", "<html><@=header>mid<@=footer></html>")

		request := http.NewRequest(nil)
		request.Path = "/page.rsp"

		require.NoError(t, interpreter.Serve(request))
		require.Equal(t, "<html>HmidF</html>", string(request.Respond().Reveal().Body))
	})

	t.Run("unknown rustlet aborts rendering", func(t *testing.T) {
		interpreter, root := newTestInterpreter(t, invoker)
		writeFile(t, root, "broken.rsp", "ok<@=nosuch>rest")

		request := http.NewRequest(nil)
		request.Path = "/broken.rsp"

		require.ErrorIs(t, interpreter.Serve(request), status.ErrUnknownRustlet)
	})

	t.Run("missing page", func(t *testing.T) {
		interpreter, _ := newTestInterpreter(t, invoker)

		request := http.NewRequest(nil)
		request.Path = "/absent.rsp"

		require.ErrorIs(t, interpreter.Serve(request), status.ErrNotFound)
	})

	t.Run("malformed page", func(t *testing.T) {
		interpreter, root := newTestInterpreter(t, invoker)
		writeFile(t, root, "bad.rsp", "text<@=oops")

		request := http.NewRequest(nil)
		request.Path = "/bad.rsp"

		require.ErrorIs(t, interpreter.Serve(request), status.ErrMalformedDocument)
	})

	t.Run("escaping the web root is refused", func(t *testing.T) {
		interpreter, _ := newTestInterpreter(t, invoker)

		request := http.NewRequest(nil)
		request.Path = "/../../etc/passwd"

		require.ErrorIs(t, interpreter.ServeFile(request), status.ErrNotFound)
	})
}

func TestInterpreterServeFile(t *testing.T) {
	interpreter, root := newTestInterpreter(t, nil)
	writeFile(t, root, "styles.css", "body { margin: 0 }")

	request := http.NewRequest(nil)
	request.Path = "/styles.css"

	require.NoError(t, interpreter.ServeFile(request))
	fields := request.Respond().Reveal()
	require.Equal(t, "body { margin: 0 }", string(fields.Body))
	require.Contains(t, fields.ContentType, "text/css")
}

func writeFile(t *testing.T, root, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte(content), 0o644))
}
