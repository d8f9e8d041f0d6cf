package web

import (
	"context"
	"io"
	"strings"

	"github.com/a-h/templ"
)

// Home renders the server status page with every live room.
func Home(view HomeView) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Word Party</title>
  </head>
  <body>
    <main class="shell">
      <header class="hero">
        <span class="tag">Word Party</span>
        <h1>Room server</h1>
      </header>
      <section class="panel stats">
        <p><strong>`)
		b.WriteString(itoa(view.RoomCount))
		b.WriteString(`</strong> rooms, <strong>`)
		b.WriteString(itoa(view.PlayerCount))
		b.WriteString(`</strong> players (`)
		b.WriteString(itoa(view.OnlineCount))
		b.WriteString(` online), <strong>`)
		b.WriteString(itoa(view.ActiveGames))
		b.WriteString(`</strong> games in progress</p>
      </section>
      <section class="panel">
`)
		if len(view.Rooms) == 0 {
			b.WriteString(`        <p class="empty">No live rooms.</p>
`)
		} else {
			b.WriteString(`        <table class="rooms">
          <thead><tr><th>Code</th><th>Category</th><th>Status</th><th>Players</th><th>Host</th><th>Last activity</th></tr></thead>
          <tbody>
`)
			for _, room := range view.Rooms {
				b.WriteString(`            <tr><td class="code">`)
				b.WriteString(templ.EscapeString(room.Code))
				b.WriteString(`</td><td>`)
				b.WriteString(templ.EscapeString(room.Category))
				b.WriteString(`</td><td>`)
				b.WriteString(templ.EscapeString(room.Status))
				b.WriteString(`</td><td>`)
				b.WriteString(itoa(room.Players))
				b.WriteString(`/`)
				b.WriteString(itoa(room.MaxPlayers))
				b.WriteString(`</td><td>`)
				b.WriteString(templ.EscapeString(room.HostName))
				b.WriteString(`</td><td>`)
				b.WriteString(formatTime(room.LastActivity))
				b.WriteString(`</td></tr>
`)
			}
			b.WriteString(`          </tbody>
        </table>
`)
		}
		b.WriteString(`      </section>
      <footer>Updated `)
		b.WriteString(formatTime(view.GeneratedAt))
		b.WriteString(` UTC</footer>
    </main>
  </body>
</html>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}
