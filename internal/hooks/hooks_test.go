package hooks

import "testing"

func TestHooksRunInRegistrationOrder(t *testing.T) {
	h := New()
	var order []int
	h.OnPageSaved(func(*Context) { order = append(order, 1) })
	h.OnPageSaved(func(*Context) { order = append(order, 2) })
	h.OnPageSaved(func(*Context) { order = append(order, 3) })

	h.PageSaved(&Context{URL: "home"})
	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Errorf("order = %v", order)
	}
}

func TestHooksShareMutableContext(t *testing.T) {
	h := New()
	h.OnPreDisplay(func(ctx *Context) { ctx.AddAction("history", "/"+ctx.URL+"/_history") })
	h.OnPreDisplay(func(ctx *Context) { ctx.AddAction("pdf", "/"+ctx.URL+"/_pdf") })

	ctx := &Context{URL: "docs/intro"}
	h.PreDisplay(ctx)
	if len(ctx.ExtraActions) != 2 {
		t.Fatalf("actions = %v", ctx.ExtraActions)
	}
	if ctx.ExtraActions[0].URL != "/docs/intro/_history" {
		t.Errorf("first action = %+v", ctx.ExtraActions[0])
	}
}

func TestHookChainsAreIndependent(t *testing.T) {
	h := New()
	var saved, edited int
	h.OnPageSaved(func(*Context) { saved++ })
	h.OnPreEdit(func(*Context) { edited++ })

	h.PageSaved(&Context{})
	h.PageSaved(&Context{})
	h.PreEdit(&Context{})
	if saved != 2 || edited != 1 {
		t.Errorf("saved=%d edited=%d", saved, edited)
	}
}

func TestEmptyHooksAreNoops(t *testing.T) {
	h := New()
	h.PageSaved(&Context{})
	h.PreEdit(&Context{})
	h.PreDisplay(&Context{})
}
