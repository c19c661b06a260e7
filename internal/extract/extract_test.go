package extract

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestPagesUnsupportedType(t *testing.T) {
	path := writeTestFile(t, "notes.txt", "plain text")

	_, err := Pages(path)
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestPagesHTML(t *testing.T) {
	html := `<html>
<head><title>Plant Manual</title><style>body { color: red; }</style></head>
<body>
<nav>Home | About</nav>
<header>Site header</header>
<h1>Maintenance Guide</h1>
<p>Check   the &nbsp; coolant   level
daily.</p>
<script>console.log("ignore me");</script>
<footer>Copyright</footer>
</body>
</html>`
	path := writeTestFile(t, "manual.html", html)

	pages, err := Pages(path)
	require.NoError(t, err)
	require.Len(t, pages, 1)

	assert.Equal(t, 1, pages[0].Number)
	assert.Contains(t, pages[0].Text, "Maintenance Guide")
	assert.Contains(t, pages[0].Text, "Check the")
	assert.Contains(t, pages[0].Text, "coolant level daily.")
	assert.NotContains(t, pages[0].Text, "console.log")
	assert.NotContains(t, pages[0].Text, "color: red")
	assert.NotContains(t, pages[0].Text, "Home | About")
	assert.NotContains(t, pages[0].Text, "Site header")
	assert.NotContains(t, pages[0].Text, "Copyright")
}

func TestPagesHTMLCaseInsensitiveExtension(t *testing.T) {
	path := writeTestFile(t, "page.HTM", "<html><body><p>hello</p></body></html>")

	pages, err := Pages(path)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, "hello", pages[0].Text)
}

func TestPagesMissingFile(t *testing.T) {
	_, err := Pages(filepath.Join(t.TempDir(), "absent.html"))
	assert.Error(t, err)
}
