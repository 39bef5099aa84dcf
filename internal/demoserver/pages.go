package demoserver

// PageVersion represents a specific version of a page with its HTML content and headers.
type PageVersion struct {
	HTML        string
	ContentType string
	Headers     map[string]string
	Cookies     []CookieDef
}

// CookieDef defines a cookie to be set.
type CookieDef struct {
	Name     string
	Value    string
	Path     string
	HttpOnly bool
	Secure   bool
	SameSite string // "Strict", "Lax", "None", or ""
}

// PageDefinition holds all versions of a single page.
type PageDefinition struct {
	Path        string
	Description string
	Versions    map[int]PageVersion
}

// GetAllPages returns all demo page definitions.
func GetAllPages() []PageDefinition {
	return []PageDefinition{
		getHomePage(),
		getPrivacyPage(),
		getContactPage(),
		getRobots(),
	}
}

var (
	leakyHeaders = map[string]string{
		"Server":       "Apache/2.4.1 (Unix)",
		"X-Powered-By": "PHP/7.2.1",
	}
	hardenedHeaders = map[string]string{
		"Strict-Transport-Security": "max-age=31536000; includeSubDomains",
		"Content-Security-Policy":   "default-src 'self'; frame-ancestors 'none'",
		"X-Frame-Options":           "DENY",
		"X-Content-Type-Options":    "nosniff",
		"Referrer-Policy":           "strict-origin-when-cross-origin",
		"Permissions-Policy":        "camera=(), microphone=(), geolocation=()",
		"Cache-Control":             "public, max-age=300",
	}
)

// ===== HOME PAGE =====
func getHomePage() PageDefinition {
	return PageDefinition{
		Path:        "/",
		Description: "Landing page with newsletter signup and analytics",
		Versions: map[int]PageVersion{
			1: {
				Headers: leakyHeaders,
				Cookies: []CookieDef{{Name: "session", Value: "demo-v1", Path: "/"}},
				HTML: `<!DOCTYPE html>
<html>
<head>
    <title>Demo Shop</title>
    <script src="https://www.google-analytics.com/analytics.js"></script>
    <script src="http://cdn.example.net/jquery.js"></script>
</head>
<body>
    <div class="top">
        <h1>Welcome to Demo Shop</h1>
        <img src="/static/hero.png">
        <h3>Newsletter</h3>
        <form action="/subscribe" method="post">
            <input type="email" name="email" placeholder="you@example.com">
            <button></button>
        </form>
    </div>
</body>
</html>`,
			},
			2: {
				Headers: hardenedHeaders,
				Cookies: []CookieDef{{Name: "session", Value: "demo-v2", Path: "/", HttpOnly: true, Secure: true, SameSite: "Lax"}},
				HTML: `<!DOCTYPE html>
<html lang="en">
<head>
    <title>Demo Shop - Sustainable goods delivered</title>
    <meta name="description" content="Demo Shop sells sustainable household goods with free delivery across Europe.">
    <link rel="canonical" href="/">
    <script src="https://www.google-analytics.com/analytics.js" defer></script>
</head>
<body>
    <a href="#main" class="skip-link">Skip to content</a>
    <header>
        <nav>
            <a href="/">Home</a>
            <a href="/contact">Contact</a>
        </nav>
    </header>
    <main id="main">
        <h1>Welcome to Demo Shop</h1>
        <img src="/static/hero.png" alt="Shelves of reusable kitchenware" width="800" height="400" loading="lazy">
        <h2>Newsletter</h2>
        <form action="/subscribe" method="post">
            <label for="email">Email</label>
            <input type="email" id="email" name="email">
            <input type="checkbox" id="consent" name="consent">
            <label for="consent">I agree to the privacy policy</label>
            <button type="submit">Subscribe</button>
        </form>
    </main>
    <div class="cookie-banner" role="dialog" aria-label="Cookie consent">
        <p>We use cookies to measure traffic. You can accept or reject analytics.</p>
        <button type="button">Accept</button>
        <button type="button">Reject</button>
    </div>
    <footer>
        <a href="/privacy">Privacy policy</a>
        <a href="/terms">Terms of service</a>
        <a href="/cookies">Cookie policy</a>
        <p>Learn about your rights or contact our data protection officer at privacy@demo-shop.example.</p>
    </footer>
</body>
</html>`,
			},
		},
	}
}

// ===== PRIVACY PAGE =====
func getPrivacyPage() PageDefinition {
	return PageDefinition{
		Path:        "/privacy",
		Description: "Privacy policy",
		Versions: map[int]PageVersion{
			1: {
				Headers: leakyHeaders,
				HTML: `<!DOCTYPE html>
<html>
<head><title>Privacy</title></head>
<body>
    <h1>Privacy</h1>
    <p>We may share information with partners.</p>
</body>
</html>`,
			},
			2: {
				Headers: hardenedHeaders,
				HTML: `<!DOCTYPE html>
<html lang="en">
<head><title>Privacy policy - Demo Shop</title></head>
<body>
    <a href="#main" class="skip-link">Skip to content</a>
    <main id="main">
        <h1>Privacy policy</h1>
        <h2>Your rights</h2>
        <p>You have the right to access, rectification and the right to erasure of your data.
        Send a data request to privacy@demo-shop.example.</p>
    </main>
</body>
</html>`,
			},
		},
	}
}

// ===== CONTACT PAGE =====
func getContactPage() PageDefinition {
	return PageDefinition{
		Path:        "/contact",
		Description: "Contact form collecting personal data",
		Versions: map[int]PageVersion{
			1: {
				Headers: leakyHeaders,
				HTML: `<!DOCTYPE html>
<html>
<head><title>Contact</title></head>
<body>
    <h2>Contact us</h2>
    <form action="/contact" method="post">
        <input type="text" name="name">
        <input type="tel" name="phone">
        <textarea name="message"></textarea>
        <input type="submit" value="Send">
    </form>
</body>
</html>`,
			},
			2: {
				Headers: hardenedHeaders,
				HTML: `<!DOCTYPE html>
<html lang="en">
<head><title>Contact - Demo Shop</title></head>
<body>
    <a href="#main" class="skip-link">Skip to content</a>
    <main id="main">
        <h1>Contact us</h1>
        <form action="/contact" method="post">
            <label for="name">Name</label>
            <input type="text" id="name" name="name">
            <label for="phone">Phone</label>
            <input type="tel" id="phone" name="phone">
            <label for="message">Message</label>
            <textarea id="message" name="message"></textarea>
            <input type="checkbox" id="privacy-consent" name="privacy_consent">
            <label for="privacy-consent">I agree to the processing of my data</label>
            <button type="submit">Send</button>
        </form>
    </main>
</body>
</html>`,
			},
		},
	}
}

// ===== ROBOTS =====
func getRobots() PageDefinition {
	return PageDefinition{
		Path:        "/robots.txt",
		Description: "Crawler policy",
		Versions: map[int]PageVersion{
			1: {
				ContentType: "text/plain",
				HTML:        "User-agent: *\nDisallow: /\n",
			},
			2: {
				ContentType: "text/plain",
				HTML:        "User-agent: *\nAllow: /\nSitemap: /sitemap.xml\n",
			},
		},
	}
}
