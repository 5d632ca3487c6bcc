// Package checkpoint persists the progress of an incomplete ETL cycle.
//
// The checkpoint is a small JSON file:
//
//	{
//	  "last_run": "2024-05-01T08:00:00Z",
//	  "last_station_index": 12,
//	  "stations_processed": ["12TH", "16TH", ...],
//	  "all_departures_count": 340
//	}
//
// It exists only while a cycle is incomplete. Save replaces the file
// atomically, Load returns nil when there is nothing to resume, and Delete is
// called once a cycle finishes cleanly.
//
// A pid lock file next to the checkpoint keeps two schedulers from driving
// the same checkpoint at once.
package checkpoint
