package storify_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sagarc03/storify"
)

func TestClient_Head_DefaultBytes(t *testing.T) {
	content := strings.Repeat("x", 2000)
	c, _ := newTestClient(t, map[string]string{"big.txt": content})

	var buf bytes.Buffer
	err := c.Head(context.Background(), []string{"/big.txt"}, storify.ReadOptions{}, &buf)
	assert.NoError(t, err)
	assert.Equal(t, content[:1024], buf.String())
}

func TestClient_Head_Lines(t *testing.T) {
	c, _ := newTestClient(t, map[string]string{"f.txt": "l1\nl2\nl3\n"})

	var buf bytes.Buffer
	err := c.Head(context.Background(), []string{"/f.txt"}, storify.ReadOptions{Lines: 2}, &buf)
	assert.NoError(t, err)
	assert.Equal(t, "l1\nl2\n", buf.String())
}

func TestClient_Head_Bytes(t *testing.T) {
	c, _ := newTestClient(t, map[string]string{"f.txt": "l1\nl2\nl3\n"})

	var buf bytes.Buffer
	err := c.Head(context.Background(), []string{"/f.txt"}, storify.ReadOptions{Bytes: 5}, &buf)
	assert.NoError(t, err)
	assert.Equal(t, "l1\nl2", buf.String())
}

func TestClient_Head_ShorterThanRequested(t *testing.T) {
	c, _ := newTestClient(t, map[string]string{"f.txt": "ab\n"})

	var buf bytes.Buffer
	err := c.Head(context.Background(), []string{"/f.txt"}, storify.ReadOptions{Lines: 10}, &buf)
	assert.NoError(t, err)
	assert.Equal(t, "ab\n", buf.String())
}

func TestClient_Tail_DefaultLines(t *testing.T) {
	lines := make([]string, 15)
	for i := range lines {
		lines[i] = strings.Repeat("z", i+1) + "\n"
	}
	c, _ := newTestClient(t, map[string]string{"f.txt": strings.Join(lines, "")})

	var buf bytes.Buffer
	err := c.Tail(context.Background(), []string{"/f.txt"}, storify.ReadOptions{}, &buf)
	assert.NoError(t, err)
	assert.Equal(t, strings.Join(lines[5:], ""), buf.String())
}

func TestClient_Tail_Lines(t *testing.T) {
	c, _ := newTestClient(t, map[string]string{"f.txt": "l1\nl2\nl3\nl4\nl5\n"})

	var buf bytes.Buffer
	err := c.Tail(context.Background(), []string{"/f.txt"}, storify.ReadOptions{Lines: 2}, &buf)
	assert.NoError(t, err)
	assert.Equal(t, "l4\nl5\n", buf.String())
}

func TestClient_Tail_WholeFileWhenShorter(t *testing.T) {
	c, _ := newTestClient(t, map[string]string{"f.txt": "only\ntwo\n"})

	var buf bytes.Buffer
	err := c.Tail(context.Background(), []string{"/f.txt"}, storify.ReadOptions{Lines: 10}, &buf)
	assert.NoError(t, err)
	assert.Equal(t, "only\ntwo\n", buf.String())
}

func TestClient_Tail_NoTrailingNewline(t *testing.T) {
	c, _ := newTestClient(t, map[string]string{"f.txt": "a\nb\nc"})

	var buf bytes.Buffer
	err := c.Tail(context.Background(), []string{"/f.txt"}, storify.ReadOptions{Lines: 2}, &buf)
	assert.NoError(t, err)
	assert.Equal(t, "b\nc", buf.String())
}

func TestClient_Tail_Bytes(t *testing.T) {
	c, _ := newTestClient(t, map[string]string{"f.txt": "abcdefgh"})

	t.Run("window from the end", func(t *testing.T) {
		var buf bytes.Buffer
		err := c.Tail(context.Background(), []string{"/f.txt"}, storify.ReadOptions{Bytes: 4}, &buf)
		assert.NoError(t, err)
		assert.Equal(t, "efgh", buf.String())
	})

	t.Run("larger than the file", func(t *testing.T) {
		var buf bytes.Buffer
		err := c.Tail(context.Background(), []string{"/f.txt"}, storify.ReadOptions{Bytes: 100}, &buf)
		assert.NoError(t, err)
		assert.Equal(t, "abcdefgh", buf.String())
	})
}

func TestClient_HeadTail_Headers(t *testing.T) {
	c, _ := newTestClient(t, map[string]string{
		"a.txt": "AAA\n",
		"b.txt": "BBB\n",
	})

	t.Run("several paths get headers", func(t *testing.T) {
		var buf bytes.Buffer
		err := c.Head(context.Background(), []string{"/a.txt", "/b.txt"}, storify.ReadOptions{Bytes: 100}, &buf)
		assert.NoError(t, err)
		assert.Equal(t, "==> /a.txt <==\nAAA\n\n==> /b.txt <==\nBBB\n", buf.String())
	})

	t.Run("quiet suppresses headers", func(t *testing.T) {
		var buf bytes.Buffer
		err := c.Head(context.Background(), []string{"/a.txt", "/b.txt"}, storify.ReadOptions{Bytes: 100, Quiet: true}, &buf)
		assert.NoError(t, err)
		assert.Equal(t, "AAA\nBBB\n", buf.String())
	})

	t.Run("verbose forces a header for one path", func(t *testing.T) {
		var buf bytes.Buffer
		err := c.Tail(context.Background(), []string{"/a.txt"}, storify.ReadOptions{Lines: 1, Verbose: true}, &buf)
		assert.NoError(t, err)
		assert.Equal(t, "==> /a.txt <==\nAAA\n", buf.String())
	})
}

func TestClient_HeadTail_OptionValidation(t *testing.T) {
	c, _ := newTestClient(t, map[string]string{"a.txt": "AAA\n"})
	var buf bytes.Buffer

	tests := []struct {
		name string
		opts storify.ReadOptions
	}{
		{name: "lines and bytes together", opts: storify.ReadOptions{Lines: 1, Bytes: 1}},
		{name: "negative lines", opts: storify.ReadOptions{Lines: -1}},
		{name: "negative bytes", opts: storify.ReadOptions{Bytes: -1}},
		{name: "quiet and verbose together", opts: storify.ReadOptions{Quiet: true, Verbose: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Head(context.Background(), []string{"/a.txt"}, tt.opts, &buf)
			assert.ErrorIs(t, err, storify.ErrInvalidArgument)

			err = c.Tail(context.Background(), []string{"/a.txt"}, tt.opts, &buf)
			assert.ErrorIs(t, err, storify.ErrInvalidArgument)
		})
	}

	t.Run("no paths", func(t *testing.T) {
		err := c.Head(context.Background(), nil, storify.ReadOptions{}, &buf)
		assert.ErrorIs(t, err, storify.ErrInvalidArgument)
	})
}

func TestClient_Head_OneFailingPathAmongMany(t *testing.T) {
	c, _ := newTestClient(t, map[string]string{"a.txt": "AAA\n"})

	var buf bytes.Buffer
	err := c.Head(context.Background(), []string{"/missing.txt", "/a.txt"}, storify.ReadOptions{Bytes: 100}, &buf)
	assert.ErrorIs(t, err, storify.ErrNotFound)
	assert.Contains(t, err.Error(), "/missing.txt")

	// The good path still printed.
	assert.Contains(t, buf.String(), "==> /a.txt <==\nAAA\n")
}

func TestClient_Head_SingleMissingPath(t *testing.T) {
	c, _ := newTestClient(t, nil)

	var buf bytes.Buffer
	err := c.Head(context.Background(), []string{"/missing.txt"}, storify.ReadOptions{}, &buf)
	assert.ErrorIs(t, err, storify.ErrNotFound)
	assert.Empty(t, buf.String())
}

func TestClient_Cat(t *testing.T) {
	c, _ := newTestClient(t, map[string]string{
		"a.txt": "AAA\n",
		"b.txt": "BBB\n",
	})

	var buf bytes.Buffer
	err := c.Cat(context.Background(), []string{"/a.txt", "/b.txt"}, &buf)
	assert.NoError(t, err)
	assert.Equal(t, "AAA\nBBB\n", buf.String())
}

func TestClient_Cat_Missing(t *testing.T) {
	c, _ := newTestClient(t, nil)

	var buf bytes.Buffer
	err := c.Cat(context.Background(), []string{"/missing.txt"}, &buf)
	assert.ErrorIs(t, err, storify.ErrNotFound)
}
