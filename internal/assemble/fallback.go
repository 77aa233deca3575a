package assemble

import "html"

// fallbackDocument is shown when the entry file is missing or unreadable.
// Restoring a prior version is the persistence collaborator's job; the
// document just points the user there.
func fallbackDocument(entryPath string) string {
	safe := html.EscapeString(entryPath)
	return `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Preview unavailable</title>
<style>
  body { font-family: system-ui, sans-serif; background: #1e1e2e; color: #cdd6f4;
         display: flex; align-items: center; justify-content: center; height: 100vh; margin: 0; }
  .card { max-width: 28rem; padding: 2rem; background: #313244; border-radius: 8px; }
  code { background: #45475a; padding: 0.1rem 0.4rem; border-radius: 4px; }
</style>
</head>
<body>
<div class="card">
  <h1>Preview unavailable</h1>
  <p>The entry file <code>` + safe + `</code> is missing or could not be read.</p>
  <p>Restore a previous version of this project to bring the preview back.</p>
</div>
</body>
</html>`
}
