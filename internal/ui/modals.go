package ui

import (
	"context"
	"time"

	"github.com/rivo/tview"
)

func createModal(p tview.Primitive, width, height int) tview.Primitive {
	return tview.NewFlex().
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().SetDirection(tview.FlexRow).
			AddItem(nil, 0, 1, false).
			AddItem(p, height, 1, true).
			AddItem(nil, 0, 1, false), width, 1, true).
		AddItem(nil, 0, 1, false)
}

func (u *UI) closeModal(name string) {
	u.pages.RemovePage(name)
	u.setBusy(false)
}

// createModelModal fetches the model list off the event loop, then shows it.
func (u *UI) createModelModal() {
	ctx, cancel := context.WithTimeout(u.ctx, 15*time.Second)
	defer cancel()

	models, err := u.opts.Models.Models(ctx)
	if err != nil {
		u.ShowError(err)
		u.queue(func() { u.setBusy(false) })
		return
	}
	u.localLogger.Info("listed ", len(models), " models")

	u.queue(func() {
		session := u.opts.Controller.Session()
		current := session.Model()

		list := tview.NewList()
		list.SetBorder(true).SetTitle("Models")
		for i, model := range models {
			shortcut := rune(0)
			if i < 9 {
				shortcut = '1' + rune(i)
			}
			if model == current {
				list.AddItem(model, "Current model", shortcut, func() {
					u.ShowNotice("Already using model: " + model)
					u.closeModal("modelModal")
				})
				continue
			}
			list.AddItem(model, "", shortcut, func() {
				u.localLogger.Info("selected: ", model)
				session.SetModel(model)
				u.ShowNotice("Using model: " + model)
				u.closeModal("modelModal")
			})
		}
		list.AddItem("Back", "", 'q', func() {
			u.closeModal("modelModal")
		})

		u.pages.AddPage("modelModal", createModal(list, 50, 20), true, true)
		u.app.SetFocus(list)
	})
}

// showUploadModal asks for the path of a saved chat.json.
func (u *UI) showUploadModal() {
	u.setBusy(true)
	form := tview.NewForm()
	form.AddInputField("Path", u.opts.ExportPath, 40, nil, nil).
		AddButton("Upload", func() {
			path := form.GetFormItemByLabel("Path").(*tview.InputField).GetText()
			u.closeModal("uploadModal")
			u.loadChat(path)
		}).
		AddButton("Cancel", func() {
			u.closeModal("uploadModal")
		})
	form.SetBorder(true).SetTitle("Upload Chat (.json)")
	form.SetCancelFunc(func() { u.closeModal("uploadModal") })

	u.pages.AddPage("uploadModal", createModal(form, 60, 7), true, true)
	u.app.SetFocus(form)
}
