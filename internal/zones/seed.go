package zones

import "github.com/couchcryptid/flood-watch/internal/domain"

// DefaultZones returns the monitored neighborhoods of Guarujá, SP with no votes
// and no weather. Derived fields are left empty; Open assesses them.
func DefaultZones() []domain.Zone {
	return []domain.Zone{
		{ID: 1, Name: "Pitangueiras", Lat: -23.9930, Lon: -46.2564},
		{ID: 2, Name: "Enseada", Lat: -23.9785, Lon: -46.2289},
		{ID: 3, Name: "Vicente de Carvalho", Lat: -23.9372, Lon: -46.3178},
		{ID: 4, Name: "Santo Antônio", Lat: -23.9890, Lon: -46.2680},
		{ID: 5, Name: "Astúrias", Lat: -23.9988, Lon: -46.2478},
		{ID: 6, Name: "Tombo", Lat: -24.0085, Lon: -46.2612},
		{ID: 7, Name: "Morrinhos", Lat: -23.9520, Lon: -46.2450},
		{ID: 8, Name: "Santa Cruz dos Navegantes", Lat: -23.9650, Lon: -46.2520},
		{ID: 9, Name: "Perequê", Lat: -23.9580, Lon: -46.2150},
		{ID: 10, Name: "Jardim Boa Esperança", Lat: -23.9420, Lon: -46.3050},
		{ID: 11, Name: "Jardim Progresso", Lat: -23.9350, Lon: -46.3100},
		{ID: 12, Name: "Pae Cará", Lat: -23.9280, Lon: -46.2980},
		{ID: 13, Name: "Jardim Las Palmas", Lat: -23.9680, Lon: -46.2380},
		{ID: 14, Name: "Jardim Virgínia", Lat: -23.9480, Lon: -46.2650},
		{ID: 15, Name: "Praia do Guaiúba", Lat: -24.0150, Lon: -46.2750},
	}
}
