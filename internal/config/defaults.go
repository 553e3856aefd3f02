package config

import "time"

// DefaultURLPrefix is the query URL prefix accepted by the query command.
const DefaultURLPrefix = "https://www.tektorg.ru/procedures?q="

// DefaultExtensions are the file extensions converted to text.
var DefaultExtensions = []string{".xls", ".xlsx", ".doc", ".docx", ".pdf", ".txt"}

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Logging == "" {
		cfg.Logging = "INFO"
	}
	if cfg.Workdir == "" {
		cfg.Workdir = "lotdocs"
	}
	if cfg.Portal.URLPrefix == "" {
		cfg.Portal.URLPrefix = DefaultURLPrefix
	}
	if cfg.Portal.DownloadMode == "" {
		cfg.Portal.DownloadMode = DownloadArchive
	}
	if cfg.Portal.Timeout == 0 {
		cfg.Portal.Timeout = 60 * time.Second
	}
	if cfg.Portal.UserAgent == "" {
		cfg.Portal.UserAgent = "lotdocs"
	}
	if cfg.Portal.Selectors.LotList == "" {
		cfg.Portal.Selectors.LotList = "a.section-procurement__item-title[href]"
	}
	if cfg.Portal.Selectors.LotName == "" {
		cfg.Portal.Selectors.LotName = "span.procedure__item-name"
	}
	if cfg.Portal.Selectors.ArchiveLink == "" {
		cfg.Portal.Selectors.ArchiveLink = "a.downloadDocument.btn.procedure__lot-button[href]"
	}
	if cfg.Portal.Selectors.FileLinks == "" {
		cfg.Portal.Selectors.FileLinks = "div.item-name > a[href]"
	}
	if cfg.Tools.Tesseract == "" {
		cfg.Tools.Tesseract = "tesseract"
	}
	if cfg.Tools.Pdftoppm == "" {
		cfg.Tools.Pdftoppm = "pdftoppm"
	}
	if cfg.Tools.Soffice == "" {
		cfg.Tools.Soffice = "soffice"
	}
	if cfg.OCR.Language == "" {
		cfg.OCR.Language = "rus"
	}
	if cfg.OCR.DPI == 0 {
		cfg.OCR.DPI = 300
	}
	if cfg.Convert.Extensions == nil {
		cfg.Convert.Extensions = append([]string(nil), DefaultExtensions...)
	}
	if cfg.Output.LinkMode == "" {
		cfg.Output.LinkMode = LinkCopy
	}
	if cfg.Output.NameMaxLen == 0 {
		cfg.Output.NameMaxLen = 50
	}
	if cfg.Search.DefaultLimit == 0 {
		cfg.Search.DefaultLimit = 10
	}
	if cfg.Search.LotNameBoost == 0 {
		cfg.Search.LotNameBoost = 2.0
	}
	if cfg.Search.PhraseBoost == 0 {
		cfg.Search.PhraseBoost = 1.5
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 2 * time.Second
	}
}
