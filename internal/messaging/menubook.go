package messaging

import (
	"fmt"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/BTreeMap/CalCounter/internal/models"
)

// DefaultMenuBookSize bounds the number of users whose last menu is remembered.
const DefaultMenuBookSize = 10000

const menuFooter = "_Responde con el número de tu opción._"

// MenuBook renders menus as numbered lists for transports without native
// buttons and maps a numbered reply back to the chosen payload. Only the last
// outbound message of a user can be answered by number.
type MenuBook struct {
	menus *lru.Cache[string, []models.Button]
}

// NewMenuBook creates a MenuBook remembering up to size users.
func NewMenuBook(size int) *MenuBook {
	if size <= 0 {
		size = DefaultMenuBookSize
	}
	menus, err := lru.New[string, []models.Button](size)
	if err != nil {
		panic(fmt.Sprintf("menubook: %v", err))
	}
	return &MenuBook{menus: menus}
}

// Render remembers the menu for the user and returns the text to send.
func (b *MenuBook) Render(to, text string, menu models.Menu) string {
	buttons := menu.Buttons()
	if len(buttons) == 0 {
		b.Forget(to)
		return text
	}
	b.menus.Add(to, buttons)

	var sb strings.Builder
	sb.WriteString(text)
	sb.WriteString("\n")
	for i, btn := range buttons {
		fmt.Fprintf(&sb, "\n%d. %s", i+1, btn.Label)
	}
	sb.WriteString("\n\n")
	sb.WriteString(menuFooter)
	return sb.String()
}

// Forget drops the remembered menu of a user.
func (b *MenuBook) Forget(to string) {
	b.menus.Remove(to)
}

// Resolve maps a numbered reply to the payload of the remembered menu. A
// resolved menu is consumed.
func (b *MenuBook) Resolve(from, text string) (string, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return "", false
	}
	buttons, ok := b.menus.Get(from)
	if !ok || n < 1 || n > len(buttons) {
		return "", false
	}
	b.menus.Remove(from)
	return buttons[n-1].Payload, true
}

// Inbound turns a numbered text reply into a button event. Other events pass
// through unchanged.
func (b *MenuBook) Inbound(evt models.Event) models.Event {
	if evt.Kind != models.EventText {
		return evt
	}
	payload, ok := b.Resolve(evt.UserID, evt.Text)
	if !ok {
		return evt
	}
	evt.Kind = models.EventButton
	evt.Payload = payload
	evt.Text = ""
	return evt
}
