package web

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<title>Trading Bot Dashboard</title>
<style>
  body { font-family: -apple-system, sans-serif; background: #0d1117; color: #c9d1d9; margin: 0; padding: 20px; }
  h1 { font-size: 20px; }
  .cards { display: flex; flex-wrap: wrap; gap: 12px; margin-bottom: 20px; }
  .card { background: #161b22; border: 1px solid #30363d; border-radius: 8px; padding: 14px 18px; min-width: 140px; }
  .card .label { font-size: 12px; color: #8b949e; }
  .card .value { font-size: 20px; margin-top: 4px; }
  .green { color: #3fb950; } .red { color: #f85149; }
  table { width: 100%; border-collapse: collapse; background: #161b22; }
  th, td { padding: 8px 12px; text-align: left; border-bottom: 1px solid #30363d; font-size: 13px; }
  button { background: #238636; color: #fff; border: none; border-radius: 6px; padding: 8px 14px; cursor: pointer; margin-right: 8px; }
  button.stop { background: #da3633; }
  #signal { background: #161b22; border: 1px solid #30363d; border-radius: 8px; padding: 14px; margin-top: 20px; white-space: pre-line; font-size: 13px; }
</style>
</head>
<body>
<h1>🤖 Trading Bot</h1>
<div>
  <button onclick="action('start')">▶️ Start</button>
  <button class="stop" onclick="action('stop')">⏸️ Stop</button>
  <button class="stop" onclick="action('close_all')">❌ Close all</button>
</div>
<div class="cards" id="cards"></div>
<h2 style="font-size:16px">Open positions</h2>
<table>
  <thead><tr><th>Symbol</th><th>Side</th><th>Entry</th><th>Qty</th><th>TP</th><th>SL</th></tr></thead>
  <tbody id="positions"></tbody>
</table>
<div id="signal">No signal yet</div>
<script>
function card(label, value, cls) {
  return '<div class="card"><div class="label">' + label + '</div><div class="value ' + (cls||'') + '">' + value + '</div></div>';
}
function render(s) {
  if (s.error) return;
  var plCls = s.total_pl >= 0 ? 'green' : 'red';
  document.getElementById('cards').innerHTML =
    card('Status', s.running ? '▶️ Running' : '⏸️ Stopped') +
    card('Balance', s.balance.toFixed(2) + ' USDT') +
    card('In positions', s.in_positions.toFixed(2) + ' USDT') +
    card('Total P&L', s.total_pl.toFixed(2) + ' USDT', plCls) +
    card('Win rate', s.win_rate.toFixed(1) + '%') +
    card('Trades', s.total_trades);
}
function refreshPositions() {
  fetch('/api/positions').then(r => r.json()).then(ps => {
    document.getElementById('positions').innerHTML = ps.map(p =>
      '<tr><td>' + p.symbol + '</td><td>' + p.side + '</td><td>' + p.entry_price.toFixed(4) +
      '</td><td>' + p.quantity.toFixed(6) + '</td><td>' + p.take_profit.toFixed(4) +
      '</td><td>' + p.stop_loss.toFixed(4) + '</td></tr>').join('');
  });
}
function refreshSignal() {
  fetch('/api/signal').then(r => r.ok ? r.json() : null).then(s => {
    if (!s) return;
    document.getElementById('signal').textContent =
      '🔍 ' + s.direction + ' | score ' + s.score.toFixed(1) +
      ' | strength ' + s.strength.toFixed(1) + ' | confidence ' + s.confidence.toFixed(0) + '%\n' +
      s.reasons.join('\n');
  });
}
function action(a) {
  fetch('/api/engine/action', {method: 'POST', body: JSON.stringify({action: a})}).then(refreshAll);
}
function refreshAll() {
  fetch('/api/stats').then(r => r.json()).then(render);
  refreshPositions();
  refreshSignal();
}
var ws = new WebSocket((location.protocol === 'https:' ? 'wss://' : 'ws://') + location.host + '/ws');
ws.onmessage = function(e) { render(JSON.parse(e.data)); };
refreshAll();
setInterval(function() { refreshPositions(); refreshSignal(); }, 10000);
</script>
</body>
</html>`
