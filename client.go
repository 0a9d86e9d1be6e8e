/*
Copyright © 2026 Hansol Cho <hansol@hansolcho.dev>
*/

package main

// clientHTML is the entire browser client. Everything is inlined so the
// binary stays self-contained and the page works offline-first on event
// venue wifi.
const clientHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Linkring</title>
<style>
:root { --accent: #4f46e5; --muted: #6b7280; --card: #f9fafb; }
* { box-sizing: border-box; }
body { font-family: system-ui, sans-serif; max-width: 40rem; margin: 0 auto; padding: 1rem; color: #111827; }
h1 { font-size: 1.4rem; }
h2 { font-size: 1.1rem; margin-top: 1.5rem; }
input, button { font-size: 1rem; padding: .5rem .7rem; border-radius: .4rem; border: 1px solid #d1d5db; }
button { background: var(--accent); color: #fff; border: none; cursor: pointer; }
button.secondary { background: #e5e7eb; color: #111827; }
button:disabled { opacity: .5; cursor: default; }
.card { background: var(--card); border: 1px solid #e5e7eb; border-radius: .6rem; padding: 1rem; margin: .8rem 0; }
.muted { color: var(--muted); font-size: .9rem; }
.hidden { display: none; }
.row { display: flex; gap: .5rem; flex-wrap: wrap; margin: .4rem 0; }
.row input { flex: 1; min-width: 8rem; }
table { border-collapse: collapse; width: 100%; }
td, th { padding: .35rem .5rem; text-align: left; border-bottom: 1px solid #e5e7eb; }
.me { font-weight: 600; }
.offline { color: var(--muted); font-style: italic; }
#banner { position: sticky; top: 0; background: var(--accent); color: #fff; padding: .6rem 1rem; border-radius: .4rem; margin-bottom: 1rem; }
#error { color: #b91c1c; min-height: 1.2rem; }
.badge { display: inline-block; background: #e0e7ff; color: #3730a3; border-radius: .3rem; padding: .1rem .4rem; font-size: .8rem; margin: .1rem; }
#timer { float: right; font-variant-numeric: tabular-nums; }
</style>
</head>
<body>
<div id="banner" class="hidden"></div>
<h1>Linkring <span id="timer" class="muted"></span></h1>
<div id="error"></div>

<section id="join-section">
  <h2>Join the event</h2>
  <div class="row"><input id="join-room" placeholder="Room name"></div>
  <div class="row"><input id="join-name" placeholder="Your name"></div>
  <div class="row"><input id="join-affiliation" placeholder="Affiliation (team, company, school)"></div>
  <div class="row"><button id="join-btn">Join</button></div>
  <details>
    <summary class="muted">Facilitator?</summary>
    <div class="row"><input id="admin-password" type="password" placeholder="Admin password"></div>
    <div class="row"><button id="auth-btn" class="secondary">Sign in</button></div>
  </details>
</section>

<section id="profile-section" class="hidden">
  <h2>Your ten tags</h2>
  <p class="muted">Interests, hobbies, quirks. All ten are required before you can be matched.</p>
  <div id="tag-inputs"></div>
  <div class="row"><button id="profile-btn">Save profile</button></div>
</section>

<section id="match-section" class="hidden">
  <h2>Your match</h2>
  <div class="card">
    <div id="match-names"></div>
    <p class="muted">Talk. Find three things you have in common, then each of you writes them down.</p>
    <div class="row"><input class="trait" placeholder="Thing in common #1"></div>
    <div class="row"><input class="trait" placeholder="Thing in common #2"></div>
    <div class="row"><input class="trait" placeholder="Thing in common #3"></div>
    <div class="row"><button id="traits-btn">Submit</button></div>
    <div id="traits-status" class="muted"></div>
  </div>
</section>

<section id="admin-section" class="hidden">
  <h2>Facilitator</h2>
  <div class="card">
    <div class="row"><input id="create-room-name" placeholder="Room name"><button id="create-btn">Open room</button></div>
    <div class="row">
      <input id="start-minutes" type="number" min="0" max="60" placeholder="Minutes">
      <button id="start-btn">Start</button>
      <button id="complete-btn" class="secondary">End session</button>
      <button id="reset-btn" class="secondary">Reset</button>
    </div>
    <p class="muted">Share <a href="qr" target="_blank">this QR code</a> so people can join, and grab the
    <a href="export.txt" target="_blank">text</a> or <a href="export.html" target="_blank">HTML</a> export afterwards.</p>
  </div>
</section>

<section id="room-section" class="hidden">
  <h2 id="room-title"></h2>
  <table id="scoreboard"><thead><tr><th>#</th><th>Name</th><th>Score</th><th>Met</th></tr></thead><tbody></tbody></table>
  <h2>Connections</h2>
  <div id="connections"></div>
</section>

<script>
"use strict";

let ws = null;
let me = "";
let facilitator = false;
let endsAt = null;
let lastRoom = null;

const $ = (id) => document.getElementById(id);

function show(id, on) { $(id).classList.toggle("hidden", !on); }

function banner(text) {
  const el = $("banner");
  if (!text) { el.classList.add("hidden"); return; }
  el.textContent = text;
  el.classList.remove("hidden");
}

function send(msg) {
  if (ws && ws.readyState === WebSocket.OPEN) { ws.send(JSON.stringify(msg)); }
}

function connect() {
  const scheme = location.protocol === "https:" ? "wss" : "ws";
  const base = location.pathname.replace(/\/$/, "");
  ws = new WebSocket(scheme + "://" + location.host + base + "/ws");
  ws.onmessage = (ev) => handle(JSON.parse(ev.data));
  ws.onclose = () => { banner("Reconnecting..."); setTimeout(connect, 2000); };
}

function handle(msg) {
  switch (msg.type) {
  case "session_info":
    me = msg.participant_id || me;
    facilitator = msg.facilitator;
    show("admin-section", facilitator);
    show("join-section", !me && msg.room_open);
    if (!msg.room_open && !facilitator) { banner("Waiting for the facilitator to open a room."); }
    else { banner(""); }
    if (me && $("tag-inputs").children.length === 0) { buildTagInputs(); }
    break;
  case "room_state":
    lastRoom = msg.room;
    render(msg.room);
    break;
  case "notice":
    if (msg.event === "match_found") { banner("You have a match! Find them and start talking."); }
    else if (msg.event === "match_cleared") { banner("Connection recorded. Waiting for the next round..."); resetTraits(); }
    else if (msg.event === "removed") { banner("You were removed from the event."); me = ""; }
    else if (msg.message) { banner(msg.message); }
    break;
  case "error":
    $("error").textContent = msg.message;
    setTimeout(() => { $("error").textContent = ""; }, 5000);
    break;
  }
}

function buildTagInputs() {
  const holder = $("tag-inputs");
  holder.innerHTML = "";
  for (let i = 1; i <= 10; i++) {
    const row = document.createElement("div");
    row.className = "row";
    const input = document.createElement("input");
    input.className = "tag";
    input.placeholder = "Tag #" + i;
    row.appendChild(input);
    holder.appendChild(row);
  }
}

function resetTraits() {
  document.querySelectorAll(".trait").forEach((el) => { el.value = ""; el.disabled = false; });
  $("traits-btn").disabled = false;
  $("traits-status").textContent = "";
}

function render(room) {
  if (!room) {
    show("room-section", false);
    show("profile-section", false);
    show("match-section", false);
    return;
  }

  show("room-section", true);
  $("room-title").textContent = room.name + " (" + room.status + ")";
  endsAt = room.ends_at ? new Date(room.ends_at) : null;

  const mine = (room.participants || []).find((p) => p.id === me);
  show("join-section", !mine && room.status !== "completed");
  show("profile-section", !!mine && !mine.ready);
  show("match-section", !!mine && (mine.partner_ids || []).length > 0);

  if (mine && (mine.partner_ids || []).length > 0) {
    const names = mine.partner_ids.map((id) => {
      const p = (room.participants || []).find((q) => q.id === id);
      return p ? p.name + " (" + p.affiliation + ")" : "(left)";
    });
    $("match-names").innerHTML = "<strong>" + names.join(" and ") + "</strong>";
  }

  const tbody = $("scoreboard").querySelector("tbody");
  tbody.innerHTML = "";
  (room.participants || []).forEach((p, i) => {
    const tr = document.createElement("tr");
    if (p.id === me) { tr.className = "me"; }
    const name = document.createElement("td");
    name.textContent = p.name + (p.online ? "" : " (offline)") + (p.ready ? "" : " *");
    if (!p.online) { name.className = "offline"; }
    const meFree = mine && (mine.partner_ids || []).length === 0;
    if (meFree && room.status === "running" && p.id !== me && (p.partner_ids || []).length === 0) {
      const link = document.createElement("button");
      link.textContent = "connect";
      link.className = "secondary";
      link.style.marginLeft = ".5rem";
      link.onclick = () => send({type: "manual_connect", target_ids: [p.id]});
      name.appendChild(link);
    }
    if (facilitator && p.id !== me) {
      const kick = document.createElement("button");
      kick.textContent = "remove";
      kick.className = "secondary";
      kick.style.marginLeft = ".5rem";
      kick.onclick = () => send({type: "admin", command: "remove", target_id: p.id});
      name.appendChild(kick);
    }
    const cells = [String(i + 1), null, String(p.score), String(p.met_count)];
    cells.forEach((text, idx) => {
      if (idx === 1) { tr.appendChild(name); return; }
      const td = document.createElement("td");
      td.textContent = text;
      tr.appendChild(td);
    });
    tbody.appendChild(tr);
  });

  const conns = $("connections");
  conns.innerHTML = "";
  (room.connections || []).forEach((c) => {
    const card = document.createElement("div");
    card.className = "card";
    const head = document.createElement("div");
    head.innerHTML = "<strong></strong>";
    head.querySelector("strong").textContent = c.member_names.join(" + ");
    card.appendChild(head);
    (c.common_traits || []).forEach((t) => {
      const badge = document.createElement("span");
      badge.className = "badge";
      badge.textContent = t;
      card.appendChild(badge);
    });
    if (!c.complete) {
      const note = document.createElement("div");
      note.className = "muted";
      note.textContent = "waiting for everyone to submit";
      card.appendChild(note);
    }
    conns.appendChild(card);
  });
}

setInterval(() => {
  if (!endsAt) { $("timer").textContent = ""; return; }
  const left = Math.max(0, Math.floor((endsAt - Date.now()) / 1000));
  const m = Math.floor(left / 60), s = left % 60;
  $("timer").textContent = m + ":" + String(s).padStart(2, "0");
}, 1000);

$("join-btn").onclick = () => send({
  type: "join",
  room_name: $("join-room").value,
  name: $("join-name").value,
  affiliation: $("join-affiliation").value,
});

$("auth-btn").onclick = () => send({type: "auth", password: $("admin-password").value});

$("profile-btn").onclick = () => {
  const tags = Array.from(document.querySelectorAll(".tag")).map((el) => el.value);
  send({type: "profile", tags: tags});
};

$("traits-btn").onclick = () => {
  const traits = Array.from(document.querySelectorAll(".trait")).map((el) => el.value);
  send({type: "submit_traits", traits: traits});
  $("traits-btn").disabled = true;
  $("traits-status").textContent = "Submitted. Waiting for your partner(s)...";
};

$("create-btn").onclick = () => send({type: "create_room", room_name: $("create-room-name").value});
$("start-btn").onclick = () => send({type: "admin", command: "start", minutes: Number($("start-minutes").value) || 0});
$("complete-btn").onclick = () => send({type: "admin", command: "complete"});
$("reset-btn").onclick = () => { if (confirm("Reset the whole event?")) { send({type: "admin", command: "reset"}); } };

buildTagInputs();
connect();
</script>
</body>
</html>
`
