package plots

import (
	"math"

	"github.com/rislab/flight-review/internal/models"
)

const earthRadius = 6371000.0

// gpsTrack projects the GPS track into the local frame of
// vehicle_local_position (east, north in meters). The local position
// reference is used when available, otherwise the first GPS fix.
func gpsTrack(rec *models.LogRecording, color string) (Series, bool) {
	gps := rec.FindTopic("vehicle_gps_position", 0)
	if gps == nil {
		return Series{}, false
	}
	lat, lon, ok := gpsDegrees(gps)
	if !ok || len(lat) == 0 {
		return Series{}, false
	}

	lat0, lon0 := lat[0], lon[0]
	if lp := rec.FindTopic("vehicle_local_position", 0); lp != nil {
		refLat, okLat := lp.Field("ref_lat")
		refLon, okLon := lp.Field("ref_lon")
		if okLat && okLon && len(refLat) > 0 && len(refLon) > 0 && (refLat[0] != 0 || refLon[0] != 0) {
			lat0, lon0 = refLat[0], refLon[0]
		}
	}

	east := make([]float64, 0, len(lat))
	north := make([]float64, 0, len(lat))
	cosLat0 := math.Cos(lat0 * math.Pi / 180)
	for i := range lat {
		// no fix
		if lat[i] == 0 && lon[i] == 0 {
			continue
		}
		north = append(north, (lat[i]-lat0)*math.Pi/180*earthRadius)
		east = append(east, (lon[i]-lon0)*math.Pi/180*earthRadius*cosLat0)
	}
	if len(east) == 0 {
		return Series{}, false
	}
	return Series{
		Log:   1,
		Topic: "vehicle_gps_position",
		Field: "lon,lat",
		Label: "GPS",
		Color: color,
		X:     east,
		Y:     north,
	}, true
}

// gpsDegrees returns latitude and longitude in degrees. Older schemas store
// them as integers scaled by 1e7.
func gpsDegrees(t *models.Topic) ([]float64, []float64, bool) {
	lat, okLat := t.Field("latitude_deg")
	lon, okLon := t.Field("longitude_deg")
	if okLat && okLon {
		n := min(len(lat), len(lon))
		return lat[:n], lon[:n], true
	}
	lat, okLat = t.Field("lat")
	lon, okLon = t.Field("lon")
	if !okLat || !okLon {
		return nil, nil, false
	}
	n := min(len(lat), len(lon))
	return scaled(lat[:n], 1e-7), scaled(lon[:n], 1e-7), true
}
