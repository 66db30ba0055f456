package store

import "trackmybus/internal/model"

// SeedRoutes is the fixture catalog served by the memory backend. In degraded
// mode these keep the feed usable; against Postgres the catalog is loaded by
// migrations instead.
func SeedRoutes() []model.Route {
	return []model.Route{
		{
			ID: "r_176", RouteNumber: "176", RouteName: "Colombo - Maharagama",
			Start: "Colombo Fort", End: "Maharagama", Active: true,
			Stops: []model.Stop{
				{Name: "Colombo Fort", Order: 1, Lat: 6.9344, Lng: 79.8428},
				{Name: "Pettah", Order: 2, Lat: 6.9367, Lng: 79.8517},
				{Name: "Maradana", Order: 3, Lat: 6.9292, Lng: 79.8606},
				{Name: "Dematagoda", Order: 4, Lat: 6.9186, Lng: 79.8792},
				{Name: "Borella", Order: 5, Lat: 6.9147, Lng: 79.8833},
				{Name: "Nugegoda", Order: 6, Lat: 6.8649, Lng: 79.8997},
				{Name: "Maharagama", Order: 7, Lat: 6.8447, Lng: 79.9258},
			},
		},
		{
			ID: "r_138", RouteNumber: "138", RouteName: "Colombo - Kottawa",
			Start: "Colombo", End: "Kottawa", Active: true,
			Stops: []model.Stop{
				{Name: "Colombo", Order: 1, Lat: 6.9271, Lng: 79.8612},
				{Name: "Bambalapitiya", Order: 2, Lat: 6.8989, Lng: 79.8553},
				{Name: "Wellawatta", Order: 3, Lat: 6.8794, Lng: 79.8553},
				{Name: "Dehiwala", Order: 4, Lat: 6.8489, Lng: 79.8653},
				{Name: "Mount Lavinia", Order: 5, Lat: 6.8306, Lng: 79.8636},
				{Name: "Ratmalana", Order: 6, Lat: 6.8183, Lng: 79.8869},
				{Name: "Kottawa", Order: 7, Lat: 6.7833, Lng: 79.9667},
			},
		},
		{
			ID: "r_122", RouteNumber: "122", RouteName: "Colombo - Gampaha",
			Start: "Colombo Fort", End: "Gampaha", Active: true,
			Stops: []model.Stop{
				{Name: "Colombo Fort", Order: 1, Lat: 6.9344, Lng: 79.8428},
				{Name: "Peliyagoda", Order: 2, Lat: 6.9583, Lng: 79.8833},
				{Name: "Kelaniya", Order: 3, Lat: 6.9553, Lng: 79.9219},
				{Name: "Kiribathgoda", Order: 4, Lat: 6.9789, Lng: 79.9289},
				{Name: "Wattala", Order: 5, Lat: 6.9889, Lng: 79.9367},
				{Name: "Ja-Ela", Order: 6, Lat: 7.0744, Lng: 79.8919},
				{Name: "Gampaha", Order: 7, Lat: 7.0917, Lng: 79.9997},
			},
		},
		{
			ID: "r_177", RouteNumber: "177", RouteName: "Colombo - Kotte",
			Start: "Colombo", End: "Sri Jayawardenepura Kotte", Active: true,
			Stops: []model.Stop{
				{Name: "Colombo", Order: 1, Lat: 6.9271, Lng: 79.8612},
				{Name: "Kollupitiya", Order: 2, Lat: 6.9097, Lng: 79.8467},
				{Name: "Borella", Order: 3, Lat: 6.9147, Lng: 79.8833},
				{Name: "Rajagiriya", Order: 4, Lat: 6.9069, Lng: 79.8978},
				{Name: "Battaramulla", Order: 5, Lat: 6.8961, Lng: 79.9167},
				{Name: "Sri Jayawardenepura Kotte", Order: 6, Lat: 6.8906, Lng: 79.9414},
			},
		},
	}
}
