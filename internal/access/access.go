// Package access decide a visibilidade de itens do painel por papel e oficina.
package access

import (
	"slices"

	"inventario/backend/internal/models"
)

// Item é uma entrada navegável do painel (ou uma ação protegida).
// AllowedOffices vazio significa "sem restrição de oficina".
type Item struct {
	Key            string            `json:"key"`
	Name           string            `json:"name"`
	Path           string            `json:"path"`
	AllowedRoles   []models.UserRole `json:"-"`
	AllowedOffices []models.Office   `json:"-"`
}

// HasAccess: o papel precisa estar em AllowedRoles e, exceto para ADMIN,
// a oficina do usuário precisa estar em AllowedOffices quando o item declara restrição.
func HasAccess(item Item, role models.UserRole, office *models.Office) bool {
	if role == "" || !slices.Contains(item.AllowedRoles, role) {
		return false
	}
	if role == models.RoleAdmin {
		return true
	}
	if len(item.AllowedOffices) == 0 {
		return true
	}
	if office == nil {
		return false
	}
	return slices.Contains(item.AllowedOffices, *office)
}

var allRoles = []models.UserRole{models.RoleAdmin, models.RoleManager, models.RoleEmployee}

var (
	Dashboard = Item{
		Key:          "dashboard",
		Name:         "Inicio",
		Path:         "/dashboard",
		AllowedRoles: allRoles,
	}
	Agents = Item{
		Key:          "agentes",
		Name:         "Agentes",
		Path:         "/dashboard/agentes",
		AllowedRoles: []models.UserRole{models.RoleAdmin, models.RoleManager},
	}
	Registration = Item{
		Key:            "registro",
		Name:           "Registro",
		Path:           "/dashboard/registro",
		AllowedRoles:   allRoles,
		AllowedOffices: []models.Office{models.OfficeOTIC, models.OfficePatrimonio},
	}
	Warehouse = Item{
		Key:            "almacen",
		Name:           "Almacén",
		Path:           "/dashboard/almacen",
		AllowedRoles:   allRoles,
		AllowedOffices: []models.Office{models.OfficeOTIC, models.OfficePatrimonio},
	}
	Documents = Item{
		Key:            "documentos",
		Name:           "Documentos",
		Path:           "/dashboard/documentos",
		AllowedRoles:   allRoles,
		AllowedOffices: []models.Office{models.OfficeOTIC, models.OfficePatrimonio},
	}
	Settings = Item{
		Key:            "configuracion",
		Name:           "Configuración",
		Path:           "/dashboard/configuracion",
		AllowedRoles:   allRoles,
		AllowedOffices: []models.Office{models.OfficeOTIC, models.OfficeAbastecimiento},
	}
)

// SettingsWrite protege a alteração das configurações do sistema. Não aparece no menu.
var SettingsWrite = Item{
	Key:          "configuracion-escritura",
	Name:         "Configuración (edición)",
	Path:         "/dashboard/configuracion",
	AllowedRoles: []models.UserRole{models.RoleAdmin},
}

// Navigation é o menu lateral, na ordem de exibição.
var Navigation = []Item{Dashboard, Agents, Registration, Warehouse, Documents, Settings}

// VisibleItems filtra Navigation para o usuário.
func VisibleItems(role models.UserRole, office *models.Office) []Item {
	visible := make([]Item, 0, len(Navigation))
	for _, item := range Navigation {
		if HasAccess(item, role, office) {
			visible = append(visible, item)
		}
	}
	return visible
}
