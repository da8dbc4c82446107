package main

import "net/http"

func (app *application) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	env := envelope{
		"status": "available",
		"system_info": map[string]string{
			"environment": app.config.Environment,
			"version":     app.config.Version,
		},
	}

	freshness, err := app.contentManager.CheckFreshness(r.Context())
	if err != nil {
		app.logger.Error(err.Error())
	} else {
		env["content"] = map[string]any{
			"stale":       freshness.Stale,
			"lastUpdated": freshness.LastUpdated,
		}
	}

	err = app.writeJSON(w, http.StatusOK, env, nil)
	if err != nil {
		app.logger.Error(err.Error())
		http.Error(w, "the server encountered a problem and could not process your request", http.StatusInternalServerError)
	}
}
