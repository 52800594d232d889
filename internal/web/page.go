package web

import "html/template"

const pageHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>PDF Assistant</title>
<style>
  *, *::before, *::after { box-sizing: border-box; margin: 0; padding: 0; }
  body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Helvetica, Arial, sans-serif; background: #0f172a; color: #e2e8f0; min-height: 100vh; display: flex; align-items: flex-start; justify-content: center; padding-top: 4rem; }
  .card { max-width: 720px; width: 90%; background: #1e293b; border-radius: 12px; padding: 2.5rem; box-shadow: 0 25px 50px rgba(0,0,0,0.4); }
  h1 { font-size: 1.75rem; margin-bottom: 0.5rem; color: #f8fafc; }
  .subtitle { color: #94a3b8; margin-bottom: 1.75rem; }
  .section-title { font-size: 0.75rem; text-transform: uppercase; letter-spacing: 0.1em; color: #64748b; margin-bottom: 0.5rem; }
  form { display: flex; gap: 0.75rem; margin-bottom: 1.5rem; }
  input[type=text] { flex: 1; background: #0f172a; border: 1px solid #334155; border-radius: 8px; padding: 0.75rem 1rem; color: #e2e8f0; font-size: 1rem; }
  button { background: #38bdf8; color: #0f172a; border: 0; border-radius: 8px; padding: 0.75rem 1.25rem; font-weight: 600; cursor: pointer; }
  .answer { background: #0f172a; border: 1px solid #334155; border-radius: 8px; padding: 1rem; line-height: 1.6; }
  .answer p + p { margin-top: 0.75rem; }
  code { font-family: "SF Mono", "Fira Code", "Fira Mono", Menlo, monospace; }
</style>
</head>
<body>
<div class="card">
  <h1>PDF Assistant with Gemini ({{.Model}})</h1>
  <p class="subtitle">Ask questions about the PDFs in the <code>{{.DocumentsDir}}</code> folder.</p>

  <form method="post" action="/">
    <input type="text" name="question" aria-label="Question" placeholder="Type your question here..." value="{{.Question}}" autofocus>
    <button type="submit">Answer</button>
  </form>

  {{if .Answer}}
  <div class="section-title">Answer</div>
  <div class="answer">{{.Answer}}</div>
  {{end}}
</div>
</body>
</html>`

var pageTemplate = template.Must(template.New("page").Parse(pageHTML))

// pageData fills pageTemplate.
type pageData struct {
	Model        string
	DocumentsDir string
	Question     string
	Answer       template.HTML // goldmark output
}
