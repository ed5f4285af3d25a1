// Package api serves the CASA HTTP API.
//
// Routes:
//
//	POST   /api/analyses               analyze a JSON pipeline.Input
//	GET    /api/analyses               list stored runs (?limit=N)
//	GET    /api/analyses/{id}          full stored result
//	DELETE /api/analyses/{id}          delete a stored run
//	GET    /api/analyses/{id}/report   text report (?units=um/s|mm/s)
//	GET    /api/analyses/{id}/tracks   per-track rows
//	GET    /api/analyses/{id}/chart    interactive trajectory page
//	GET    /api/analyses/{id}/plot.png static trajectory plot
//	GET    /api/config                 active analysis parameters
//
// Admin routes under /debug/ are attached when a store is configured.
package api
