package features

import (
	"inventario/backend/pkg/config"
)

// UserExistsCheck libera o endpoint público que informa se um e-mail tem conta ativa.
// Desligado por padrão porque permite enumerar contas.
const UserExistsCheck = "USER_EXISTS_CHECK"

// IsEnabled verifica se um feature toggle específico está habilitado.
// Os nomes são case-sensitive e correspondem à variável de ambiente sem o prefixo FEATURE_.
func IsEnabled(featureName string) bool {
	enabled, _ := GetFeatureToggleState(featureName)
	return enabled
}

// GetFeatureToggleState retorna o estado de um feature toggle e se ele existe.
func GetFeatureToggleState(featureName string) (enabled bool, exists bool) {
	if config.Cfg.FeatureToggles == nil {
		return false, false
	}
	enabled, exists = config.Cfg.FeatureToggles[featureName]
	return enabled, exists
}
