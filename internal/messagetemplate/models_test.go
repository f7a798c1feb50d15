package messagetemplate

import (
	"errors"
	"testing"

	"github.com/acted/rules-engine/pkg/value"
)

func TestRender(t *testing.T) {
	tpl := Template{
		Name:        "discount_applied",
		Title:       "Discount for {{ user.first_name }}",
		Body:        "You saved {{cart.discount}} {{ cart.currency }} on this order.",
		MessageType: TypeSuccess,
		Buttons:     []Button{{Label: "Thanks {{ user.first_name }}", Action: "dismiss"}},
	}
	ctx := value.MustParse(`{"user": {"first_name": "Ann"}, "cart": {"discount": "15.00", "currency": "GBP"}}`)

	out, err := tpl.Render(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if out.Title != "Discount for Ann" {
		t.Errorf("invalid title %q", out.Title)
	}
	if out.Body != "You saved 15.00 GBP on this order." {
		t.Errorf("invalid body %q", out.Body)
	}
	if len(out.Buttons) != 1 || out.Buttons[0].Label != "Thanks Ann" || out.Buttons[0].Action != "dismiss" {
		t.Errorf("invalid buttons %+v", out.Buttons)
	}
	if tpl.Title != "Discount for {{ user.first_name }}" {
		t.Error("rendering mutated the template")
	}
}

func TestRenderWithoutPlaceholders(t *testing.T) {
	out, err := Template{Name: "eu_terms", Title: "Terms", Body: "Please accept the EU terms."}.Render(value.Missing)
	if err != nil {
		t.Fatal(err)
	}
	if out.Body != "Please accept the EU terms." || out.MessageType != TypeInfo {
		t.Errorf("unexpected output %+v", out)
	}
}

func TestRenderFailure(t *testing.T) {
	_, err := Template{Name: "broken", Body: "Total: {{ 1 + }}"}.Render(value.MustParse(`{}`))
	if !errors.Is(err, ErrRenderFailed) {
		t.Errorf("expected ErrRenderFailed, got %v", err)
	}
}

func TestIsValid(t *testing.T) {
	if ok, _ := (Template{}).IsValid(); ok {
		t.Error("template without name must be invalid")
	}
	if ok, _ := (Template{Name: "x", MessageType: "shout"}).IsValid(); ok {
		t.Error("unknown message type must be invalid")
	}
	if ok, err := (Template{Name: "x", MessageType: TypeWarning}).IsValid(); !ok {
		t.Errorf("unexpected error %v", err)
	}
}

func TestMemoryRepository(t *testing.T) {
	r := NewMemoryRepository()
	if err := r.Save(Template{Name: "banner", Body: "hello"}); err != nil {
		t.Fatal(err)
	}
	if err := r.Save(Template{}); err == nil {
		t.Error("invalid template saved")
	}
	got, found, err := r.Get("banner")
	if err != nil || !found || got.Body != "hello" {
		t.Errorf("template not found: %+v %v", got, err)
	}
	all, _ := r.GetAll()
	if len(all) != 1 {
		t.Errorf("invalid template count %d", len(all))
	}
	if err := r.Delete("banner"); err != nil {
		t.Fatal(err)
	}
	if _, found, _ := r.Get("banner"); found {
		t.Error("template still present after delete")
	}
}
