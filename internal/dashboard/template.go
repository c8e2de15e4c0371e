package dashboard

const pageTemplate = `<!DOCTYPE html>
<html>
<head>
    <title>{{.Service}} - Dashboard</title>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <style>
        body { font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; margin: 0; padding: 20px; background-color: #f5f5f5; }
        .container { max-width: 1400px; margin: 0 auto; }
        .header { background: linear-gradient(135deg, #667eea 0%, #764ba2 100%); color: white; padding: 20px; border-radius: 10px; margin-bottom: 20px; }
        .header h1 { margin: 0; font-size: 2em; text-align: center; }
        .grid { display: grid; grid-template-columns: repeat(auto-fit, minmax(300px, 1fr)); gap: 20px; margin-bottom: 20px; }
        .card { background: white; border-radius: 10px; padding: 20px; box-shadow: 0 4px 6px rgba(0,0,0,0.1); }
        .card h3 { margin-top: 0; color: #333; border-bottom: 2px solid #eee; padding-bottom: 10px; }
        .metric { display: flex; justify-content: space-between; padding: 8px 0; border-bottom: 1px solid #eee; }
        .metric:last-child { border-bottom: none; }
        .metric-label { font-weight: 500; color: #666; }
        .metric-value { font-weight: bold; color: #333; }
        table { width: 100%; border-collapse: collapse; }
        th, td { text-align: left; padding: 8px; border-bottom: 1px solid #eee; }
        th { background-color: #f8f9fa; font-weight: 600; }
        .status { color: #666; margin-bottom: 10px; }
        .new-row { background-color: #e8f5e9; }
    </style>
</head>
<body>
<div class="container">
    <div class="header"><h1>{{.Service}}</h1></div>
    <div class="status" id="feed-status">Live feed: connecting...</div>

    <div class="grid">
        <div class="card">
            <h3>Predictions</h3>
            <div class="metric"><span class="metric-label">Stored</span><span class="metric-value" id="total">{{.Summary.Total}}</span></div>
            <div class="metric"><span class="metric-label">Served since start</span><span class="metric-value">{{.Summary.Pipeline.Predictions}}</span></div>
            <div class="metric"><span class="metric-label">Cache hit rate</span><span class="metric-value">{{pct .Summary.Pipeline.CacheHitRate}}</span></div>
            <div class="metric"><span class="metric-label">Cached results</span><span class="metric-value">{{.Summary.CacheSize}}</span></div>
            <div class="metric"><span class="metric-label">Error rate</span><span class="metric-value">{{pct .Summary.Pipeline.ErrorRate}}</span></div>
        </div>

        <div class="card">
            <h3>Prices</h3>
            <div class="metric"><span class="metric-label">Average</span><span class="metric-value">{{price .Summary.Price.AvgPrice}}</span></div>
            <div class="metric"><span class="metric-label">Minimum</span><span class="metric-value">{{price .Summary.Price.MinPrice}}</span></div>
            <div class="metric"><span class="metric-label">Maximum</span><span class="metric-value">{{price .Summary.Price.MaxPrice}}</span></div>
            <div class="metric"><span class="metric-label">Std deviation</span><span class="metric-value">{{price .Summary.Price.StdDevPrice}}</span></div>
        </div>

        <div class="card">
            <h3>Cleanup</h3>
            <div class="metric">
                <span class="metric-label">Delete predictions older than</span>
                <span><input type="number" id="days-old" min="1" max="365" value="30"> days</span>
            </div>
            <button onclick="cleanup()">Delete</button>
            <div class="status" id="cleanup-result"></div>
        </div>
    </div>

    <div class="grid">
        <div class="card">
            <h3>By company</h3>
            <table>
                <thead><tr><th>Company</th><th>Count</th><th>Average</th><th>Min</th><th>Max</th></tr></thead>
                <tbody>
                {{range .Summary.Companies}}
                    <tr><td>{{.Company}}</td><td>{{.Count}}</td><td>{{price .AvgPrice}}</td><td>{{price .MinPrice}}</td><td>{{price .MaxPrice}}</td></tr>
                {{else}}
                    <tr><td colspan="5" style="text-align: center; color: #666;">No predictions yet</td></tr>
                {{end}}
                </tbody>
            </table>
        </div>
    </div>

    <div class="card">
        <h3>Recent predictions</h3>
        <table>
            <thead><tr><th>Time</th><th>Company</th><th>Type</th><th>RAM</th><th>CPU</th><th>Price</th><th>ID</th></tr></thead>
            <tbody id="recent">
            {{range .Summary.Recent}}
                <tr><td>{{when .Timestamp}}</td><td>{{.InputFeatures.Company}}</td><td>{{.InputFeatures.TypeName}}</td><td>{{.InputFeatures.RAM}} GB</td><td>{{.InputFeatures.CPUBrand}}</td><td>{{.PriceFormatted}}</td><td>{{.PredictionID}}</td></tr>
            {{end}}
            </tbody>
        </table>
    </div>
</div>

<script>
    const adminBase = {{.Admin}};
    const scheme = location.protocol === 'https:' ? 'wss://' : 'ws://';
    const ws = new WebSocket(scheme + location.host + '/dashboard/ws');
    const status = document.getElementById('feed-status');

    ws.onopen = function() { status.textContent = 'Live feed: connected'; };
    ws.onclose = function() {
        status.textContent = 'Live feed: disconnected';
        setTimeout(() => location.reload(), 5000);
    };
    ws.onmessage = function(event) {
        const ev = JSON.parse(event.data);
        if (ev.type !== 'prediction') { return; }
        addRow(ev.record);
        const total = document.getElementById('total');
        total.textContent = parseInt(total.textContent, 10) + 1;
    };

    function cell(text) {
        const td = document.createElement('td');
        td.textContent = text;
        return td;
    }

    function addRow(rec) {
        const f = rec.input_features;
        const row = document.createElement('tr');
        row.className = 'new-row';
        row.appendChild(cell(new Date(rec.timestamp).toLocaleString()));
        row.appendChild(cell(f.company));
        row.appendChild(cell(f.type_name));
        row.appendChild(cell(f.ram + ' GB'));
        row.appendChild(cell(f.cpu_brand));
        row.appendChild(cell(rec.price_formatted));
        row.appendChild(cell(rec.prediction_id));
        const tbody = document.getElementById('recent');
        tbody.insertBefore(row, tbody.firstChild);
        while (tbody.children.length > 20) { tbody.removeChild(tbody.lastChild); }
    }

    function cleanup() {
        const days = document.getElementById('days-old').value;
        fetch(adminBase + '/predictions/cleanup/old?days_old=' + encodeURIComponent(days), { method: 'DELETE' })
            .then(r => r.json())
            .then(body => {
                document.getElementById('cleanup-result').textContent = body.message || body.detail;
            });
    }
</script>
</body>
</html>
`
