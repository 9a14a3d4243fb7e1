package app

import (
	"github.com/zurustar/blockstage/pkg/stage"
)

// loadAssets は背景とコスチュームの画像を読み込む。
// 読めない画像は警告だけ出して続行する
func (app *Application) loadAssets() error {
	st := app.tuning.Stage
	app.sampler = stage.NewSampler(st.Width, st.Height)

	list := make([]stage.Backdrop, 0, len(app.project.Backdrops))
	for _, b := range app.project.Backdrops {
		if b.URL != "" {
			img, err := stage.LoadImage(app.assets, b.URL)
			if err != nil {
				app.log.Warn("Failed to load backdrop", "name", b.Name, "url", b.URL, "error", err)
			} else {
				b.Image = img
			}
		}
		list = append(list, b)
	}
	app.backdrops = stage.NewBackdrops(app.sampler, list...)

	app.costumes = make(map[string]*stage.Costume)
	for _, a := range app.project.Actors {
		if a.Costume == "" {
			continue
		}
		c, ok := app.costumes[a.Costume]
		if !ok {
			var err error
			c, err = stage.LoadCostume(app.assets, a.Costume)
			if err != nil {
				app.log.Warn("Failed to load costume", "actor", a.ID, "costume", a.Costume, "error", err)
				continue
			}
			app.costumes[a.Costume] = c
			app.log.Debug("Costume loaded", "costume", a.Costume, "frames", len(c.Frames))
		}
		if len(c.Frames) > 1 {
			a.Animation.Delays = c.Delays
		}
	}
	return nil
}
