package web

import (
	"context"
	"fmt"
	"html"
	"io"

	"github.com/a-h/templ"
)

func Home(rooms []RoomSummary) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, _ = io.WriteString(w, `<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Pictochatter</title>
    <link rel="stylesheet" href="/static/styles.css"/>
  </head>
  <body>
    <main class="shell">
      <header class="hero">
        <span class="tag">Pictochatter</span>
        <h1>Doodle and chat, together.</h1>
        <p>Pick a room below or open your own. Your sketches and messages sync live.</p>
      </header>

      <section class="panel">
        <h2>Open rooms</h2>
        <ul class="room-list">
`)
		for _, room := range rooms {
			kind := "built-in"
			if room.IsCustom {
				kind = "custom"
			}
			_, _ = fmt.Fprintf(w, `          <li class="room" data-room-id="%s">
            <span class="room-name">%s</span>
            <span class="room-kind">%s</span>
            <span class="room-count">%d/%d</span>
          </li>
`, html.EscapeString(room.ID), html.EscapeString(room.Name), kind, room.Players, room.MaxPlayers)
		}
		_, _ = io.WriteString(w, `        </ul>
      </section>

      <section class="panel">
        <div>
          <h2>Create a room</h2>
          <p>Custom rooms expire automatically once everyone has left.</p>
        </div>
        <form id="createForm" class="create-form">
          <input name="name" placeholder="Room name" autocomplete="off" required/>
          <button type="submit" class="primary">Create room</button>
        </form>
        <div id="createResult" class="result"></div>
      </section>
    </main>

    <script>
      const createForm = document.getElementById("createForm");
      const createResult = document.getElementById("createResult");

      createForm.addEventListener("submit", async (event) => {
        event.preventDefault();
        createResult.textContent = "Creating room...";
        const name = createForm.elements.name.value.trim();
        const res = await fetch("/api/rooms", {
          method: "POST",
          headers: { "Content-Type": "application/json" },
          body: JSON.stringify({ name })
        });
        const data = await res.json();
        if (!res.ok) {
          createResult.textContent = data.error || "Failed to create room.";
          return;
        }
        createResult.textContent = "Room created: " + data.name + " (" + data.id + ")";
        window.location.reload();
      });
    </script>
  </body>
</html>
`)
		return nil
	})
}
