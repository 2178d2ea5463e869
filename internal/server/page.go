package server

const uploadPage = `<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Patient Register Extractor</title>
<style>
body { font-family: sans-serif; max-width: 60rem; margin: 2rem auto; }
table { border-collapse: collapse; margin-top: 1rem; }
td, th { border: 1px solid #ccc; padding: .25rem .5rem; }
#status { margin-top: 1rem; }
</style>
</head>
<body>
<h1>Patient Register Extractor</h1>
<p>Upload photos of handwritten register pages (jpg, jpeg, png, webp, bmp, tiff).</p>
<form id="upload" method="post" action="/api/export" enctype="multipart/form-data">
  <input type="file" name="images" accept="image/*" multiple>
  <button type="submit" value="extract">Extract</button>
  <button type="submit" value="export">Download Excel</button>
</form>
<div id="status"></div>
<div id="result"></div>
<script>
const form = document.getElementById("upload");
form.addEventListener("submit", async (ev) => {
  if (ev.submitter && ev.submitter.value === "export") return;
  ev.preventDefault();
  const status = document.getElementById("status");
  const result = document.getElementById("result");
  status.textContent = "Processing...";
  result.innerHTML = "";
  const resp = await fetch("/api/extract", { method: "POST", body: new FormData(form) });
  const body = await resp.json();
  if (!resp.ok) { status.textContent = body.error; return; }
  status.textContent = body.outcomes.map(o => o.source + ": " + o.status + (o.error ? " (" + o.error + ")" : "")).join(" | ");
  const table = document.createElement("table");
  const head = table.insertRow();
  body.columns.forEach(c => { const th = document.createElement("th"); th.textContent = c; head.appendChild(th); });
  body.rows.forEach(r => { const tr = table.insertRow(); r.forEach(v => { tr.insertCell().textContent = v; }); });
  result.appendChild(table);
});
</script>
</body>
</html>
`
