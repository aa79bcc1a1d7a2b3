// internal/registry/script.go
package registry

// markerAttr is the out of band attribute tying a scan handle to its DOM
// node. Handle resolution goes through this attribute, never through a
// reconstructed CSS path, so a handle stays resolvable while the node lives.
const markerAttr = "data-scout-id"

// scanScript finds visible interactive elements, tags each with markerAttr
// and returns their metadata in DOM traversal order. Previous markers are
// cleared first so repeated scans are safe.
const scanScript = `(() => {
    const ATTR = 'data-scout-id';
    const selectors = [
        'button',
        'a[href]',
        'input:not([type="hidden"])',
        'select',
        'textarea',
        '[role="button"]',
        '[role="link"]',
        '[role="checkbox"]',
        '[role="radio"]',
        '[role="tab"]',
        '[role="menuitem"]',
        '[onclick]',
        '[tabindex]:not([tabindex="-1"])'
    ];

    document.querySelectorAll('[' + ATTR + ']').forEach(el => el.removeAttribute(ATTR));

    const isVisible = (el) => {
        const rect = el.getBoundingClientRect();
        if (rect.width <= 0 || rect.height <= 0) { return false; }
        const style = window.getComputedStyle(el);
        if (style.display === 'none' || style.visibility === 'hidden' || style.opacity === '0') { return false; }
        if (rect.bottom < 0 || rect.top > window.innerHeight * 3) { return false; }
        return true;
    };

    const classify = (el) => {
        const tag = el.tagName.toLowerCase();
        const type = (el.getAttribute('type') || '').toLowerCase();
        const role = (el.getAttribute('role') || '').toLowerCase();
        if (tag === 'button' || role === 'button' || type === 'button' || type === 'submit') { return 'button'; }
        if (tag === 'a' || role === 'link') { return 'link'; }
        if (tag === 'select') { return 'select'; }
        if (tag === 'textarea') { return 'textarea'; }
        if (tag === 'img') { return 'image'; }
        if (tag === 'input') {
            if (type === 'checkbox') { return 'checkbox'; }
            if (type === 'radio') { return 'radio'; }
            if (type === 'image') { return 'image'; }
            return 'input';
        }
        if (role === 'checkbox') { return 'checkbox'; }
        if (role === 'radio') { return 'radio'; }
        return 'custom';
    };

    const results = [];
    let handle = 0;
    document.querySelectorAll(selectors.join(', ')).forEach(el => {
        if (!isVisible(el)) { return; }
        const rect = el.getBoundingClientRect();
        el.setAttribute(ATTR, String(handle));
        results.push({
            handle: handle,
            kind: classify(el),
            tag: el.tagName.toLowerCase(),
            visible_text: (el.innerText || el.value || '').trim().slice(0, 200),
            placeholder: el.getAttribute('placeholder') || '',
            aria_label: el.getAttribute('aria-label') || '',
            name: el.getAttribute('name') || '',
            dom_id: el.id || '',
            css_classes: (typeof el.className === 'string' ? el.className : '').trim(),
            href: el.getAttribute('href') || '',
            src: el.getAttribute('src') || '',
            is_visible: true,
            is_enabled: !el.disabled,
            bounding_box: {x: rect.x, y: rect.y, width: rect.width, height: rect.height}
        });
        handle += 1;
    });
    return results;
})()`

// highlightScript draws the numbered set of marks badges over every tagged
// element. It must only run against the scan that assigned the current
// handles; rendering a stale scan against a live page is a caller bug.
const highlightScript = `(() => {
    const ATTR = 'data-scout-id';
    document.querySelectorAll('.scout-marker').forEach(el => el.remove());
    document.querySelectorAll('[' + ATTR + ']').forEach(el => {
        const id = el.getAttribute(ATTR);
        const rect = el.getBoundingClientRect();
        el.style.outline = '2px solid red';
        const badge = document.createElement('div');
        badge.className = 'scout-marker';
        badge.textContent = id;
        badge.style.cssText = [
            'position: absolute',
            'left: ' + (rect.left + window.scrollX - 5) + 'px',
            'top: ' + (rect.top + window.scrollY - 12) + 'px',
            'background: red',
            'color: white',
            'font: bold 11px monospace',
            'padding: 1px 4px',
            'border-radius: 3px',
            'z-index: 999999',
            'pointer-events: none'
        ].join(';');
        document.body.appendChild(badge);
    });
    return document.querySelectorAll('.scout-marker').length;
})()`

// cleanupScript removes every visual artifact of the set of marks overlay.
// The marker attribute itself stays so handles remain resolvable after the
// marked screenshot is taken. Running it twice is a no-op.
const cleanupScript = `(() => {
    const ATTR = 'data-scout-id';
    document.querySelectorAll('.scout-marker').forEach(el => el.remove());
    document.querySelectorAll('[' + ATTR + ']').forEach(el => {
        el.style.outline = '';
    });
    return true;
})()`
