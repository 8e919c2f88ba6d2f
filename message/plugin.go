package message

type Plugin struct {
	Name   string `json:"name"`
	Output string `json:"output"`
}

type PluginCreate struct {
	Plugin     string `json:"plugin"`
	PluginType string `json:"plugin_type"`
}

type PluginUpdate struct {
	Plugin    string `json:"plugin"`
	Attribute string `json:"attribute"`
	Value     any    `json:"value"`
}

type PluginRemove struct {
	Plugin string `json:"plugin"`
}
