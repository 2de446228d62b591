package hooks

// Hook names the host triggers. Extensions bind to these; they cannot add new
// ones.
const (
	UIInit     = "ui_init"
	UIRender   = "ui_render"
	UISidebar  = "ui_sidebar"
	UIHeader   = "ui_header"
	UIFooter   = "ui_footer"
	UIChat     = "ui_chat"
	UISettings = "ui_settings"

	APIInit           = "api_init"
	APIRegisterRoutes = "api_register_routes"
	APIBeforeRequest  = "api_before_request"
	APIAfterRequest   = "api_after_request"

	ModelInit           = "model_init"
	ModelRegister       = "model_register"
	ModelBeforeGenerate = "model_before_generate"
	ModelAfterGenerate  = "model_after_generate"

	SystemInit         = "system_init"
	SystemShutdown     = "system_shutdown"
	SystemSettingsLoad = "system_settings_load"
	SystemSettingsSave = "system_settings_save"

	ExtensionLoaded   = "extension_loaded"
	ExtensionUnloaded = "extension_unloaded"
)

// Catalog is the default hook vocabulary.
var Catalog = []string{
	UIInit, UIRender, UISidebar, UIHeader, UIFooter, UIChat, UISettings,
	APIInit, APIRegisterRoutes, APIBeforeRequest, APIAfterRequest,
	ModelInit, ModelRegister, ModelBeforeGenerate, ModelAfterGenerate,
	SystemInit, SystemShutdown, SystemSettingsLoad, SystemSettingsSave,
	ExtensionLoaded, ExtensionUnloaded,
}
