package admission

import "strings"

var browserTokens = []string{
	"mozilla", "chrome", "safari", "edge", "firefox", "opera", "msie",
}

var botTokens = []string{
	"bot", "crawler", "spider", "scraper",
	"curl", "wget", "python", "java", "perl", "ruby", "go-http",
	"scrapy", "mechanize", "headless", "phantom", "selenium", "webdriver",
	"postman", "insomnia", "apache-httpclient", "okhttp", "libwww-perl",
	"masscan", "nmap", "nikto", "sqlmap", "dirbuster", "gobuster", "burp",
	"zap", "nessus", "openvas", "acunetix", "netsparker", "appscan", "qualys",
	"rapid7", "metasploit", "havij", "pangolin", "sqlsus", "sqlninja", "w3af",
	"skipfish", "wapiti", "arachni", "lynx", "links", "w3m",
}

// IsBot classifies a User-Agent. Browser tokens win over automation tokens;
// an agent matching neither list is treated as automation.
func IsBot(userAgent string) bool {
	bot, _ := classifyAgent(userAgent)
	return bot
}

// Returns the token that decided the classification, "" when none matched
func classifyAgent(userAgent string) (bool, string) {
	ua := strings.ToLower(strings.TrimSpace(userAgent))
	if ua == "" {
		return true, ""
	}

	for _, token := range browserTokens {
		if strings.Contains(ua, token) {
			return false, token
		}
	}

	for _, token := range botTokens {
		if strings.Contains(ua, token) {
			return true, token
		}
	}

	return true, ""
}
