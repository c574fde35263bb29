package target

// DefaultWordlist is the built-in subdomain candidate list, ordered by
// observed frequency. Entries are unique.
var DefaultWordlist = []string{
	"www", "mail", "ftp", "localhost", "webmail", "smtp", "pop", "ns1", "webdisk", "ns2",
	"cpanel", "whm", "autodiscover", "autoconfig", "m", "imap", "test", "ns", "blog",
	"pop3", "dev", "www2", "admin", "forum", "news", "vpn", "ns3", "mail2", "new",
	"mysql", "old", "www1", "email", "img", "www3", "help", "shop", "owa", "en",
	"start", "sms", "api", "exchange", "www4", "www5", "mx", "secure", "download",
	"demo", "web", "beta", "www6", "search", "static", "ftp2", "www7", "mobile",
}
