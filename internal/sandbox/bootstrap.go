package sandbox

// bootstrapJS installs the minimal browser surface the shim expects. It runs
// before any document script: window aliases the global scope, element
// constructors expose accessor-backed src/href so the shim can wrap their
// setters, and fetch is backed by the host's __goFetch callback (asset
// handles and data URIs only; the sandbox has no network).
const bootstrapJS = `(function () {
  'use strict';
  var g = globalThis;
  g.window = g;
  g.self = g;

  var __listeners = {};
  g.addEventListener = function (type, fn) {
    if (typeof fn !== 'function') return;
    (__listeners[type] = __listeners[type] || []).push(fn);
  };
  g.removeEventListener = function (type, fn) {
    var ls = __listeners[type];
    if (!ls) return;
    var i = ls.indexOf(fn);
    if (i >= 0) ls.splice(i, 1);
  };
  g.__dispatchEvent = function (type, evt) {
    var ls = __listeners[type] || [];
    for (var i = 0; i < ls.length; i++) {
      try { ls[i](evt); } catch (e) {
        if (type !== 'error') {
          g.__dispatchEvent('error', { message: e && e.message ? e.message : String(e) });
        }
      }
    }
    return ls.length;
  };

  g.location = { href: 'preview://document', origin: 'preview://', protocol: 'preview:' };
  g.navigator = { userAgent: 'previewd-sandbox', language: 'en-US', onLine: false };

  function CSSStyleDeclaration() { this.__props = {}; }
  CSSStyleDeclaration.prototype.setProperty = function (prop, value) {
    this.__props[prop] = String(value);
  };
  CSSStyleDeclaration.prototype.getPropertyValue = function (prop) {
    return this.__props[prop] || '';
  };
  Object.defineProperty(CSSStyleDeclaration.prototype, 'backgroundImage', {
    get: function () { return this.__props['background-image'] || ''; },
    set: function (v) { this.__props['background-image'] = String(v); },
    configurable: true
  });
  g.CSSStyleDeclaration = CSSStyleDeclaration;

  function defineURLProperty(proto, name) {
    Object.defineProperty(proto, name, {
      get: function () { return this['__' + name] || ''; },
      set: function (v) { this['__' + name] = String(v); },
      configurable: true
    });
  }

  function Element(tag) {
    this.tagName = String(tag || 'div').toUpperCase();
    this.attributes = {};
    this.children = [];
    this.style = new CSSStyleDeclaration();
    this.textContent = '';
    this.innerHTML = '';
  }
  Element.prototype.setAttribute = function (name, value) {
    this.attributes[name] = String(value);
    if (name === 'src' || name === 'href') this[name] = String(value);
  };
  Element.prototype.getAttribute = function (name) {
    return name in this.attributes ? this.attributes[name] : null;
  };
  Element.prototype.appendChild = function (child) {
    this.children.push(child);
    return child;
  };
  Element.prototype.removeChild = function (child) {
    var i = this.children.indexOf(child);
    if (i >= 0) this.children.splice(i, 1);
    return child;
  };
  Element.prototype.addEventListener = function () {};
  Element.prototype.removeEventListener = function () {};
  defineURLProperty(Element.prototype, 'src');
  defineURLProperty(Element.prototype, 'href');
  g.Element = Element;

  function HTMLImageElement() { Element.call(this, 'img'); }
  HTMLImageElement.prototype = Object.create(Element.prototype);
  defineURLProperty(HTMLImageElement.prototype, 'src');
  g.HTMLImageElement = HTMLImageElement;
  g.Image = function (w, h) {
    var img = new HTMLImageElement();
    if (w !== undefined) img.width = w;
    if (h !== undefined) img.height = h;
    return img;
  };
  g.Image.prototype = HTMLImageElement.prototype;

  function HTMLMediaElement(tag) { Element.call(this, tag || 'audio'); }
  HTMLMediaElement.prototype = Object.create(Element.prototype);
  defineURLProperty(HTMLMediaElement.prototype, 'src');
  HTMLMediaElement.prototype.play = function () { return Promise.resolve(); };
  HTMLMediaElement.prototype.pause = function () {};
  g.HTMLMediaElement = HTMLMediaElement;
  g.Audio = function (src) {
    var a = new HTMLMediaElement('audio');
    if (src !== undefined) a.src = src;
    return a;
  };
  g.Audio.prototype = HTMLMediaElement.prototype;

  function HTMLScriptElement() { Element.call(this, 'script'); }
  HTMLScriptElement.prototype = Object.create(Element.prototype);
  defineURLProperty(HTMLScriptElement.prototype, 'src');
  g.HTMLScriptElement = HTMLScriptElement;

  function CanvasRenderingContext2D() { this.fillStyle = '#000'; this.strokeStyle = '#000'; }
  var ctxNoops = ['fillRect', 'strokeRect', 'clearRect', 'beginPath', 'closePath', 'moveTo',
    'lineTo', 'arc', 'fill', 'stroke', 'drawImage', 'fillText', 'strokeText', 'save',
    'restore', 'translate', 'rotate', 'scale'];
  for (var i = 0; i < ctxNoops.length; i++) {
    CanvasRenderingContext2D.prototype[ctxNoops[i]] = function () {};
  }
  g.CanvasRenderingContext2D = CanvasRenderingContext2D;

  function createElement(tag) {
    switch (String(tag).toLowerCase()) {
      case 'img': return new HTMLImageElement();
      case 'audio': case 'video': return new HTMLMediaElement(tag);
      case 'script': return new HTMLScriptElement();
      case 'canvas':
        var c = new Element('canvas');
        c.getContext = function (kind) {
          return kind === '2d' ? new CanvasRenderingContext2D() : null;
        };
        return c;
      default: return new Element(tag);
    }
  }

  g.document = {
    body: new Element('body'),
    head: new Element('head'),
    documentElement: new Element('html'),
    createElement: createElement,
    createTextNode: function (text) { return { nodeType: 3, textContent: String(text) }; },
    addEventListener: g.addEventListener,
    removeEventListener: g.removeEventListener,
    // getElementById / querySelector are provided by the host once the
    // document proxy is parsed.
    getElementById: function () { return null; },
    querySelector: function () { return null; },
    querySelectorAll: function () { return []; }
  };

  g.Request = function (input, init) {
    this.url = typeof input === 'string' ? input : (input && input.url) || '';
    this.method = (init && init.method) || 'GET';
  };

  g.fetch = function (input, init) {
    var url = typeof input === 'string' ? input : (input && input.url) || '';
    return new Promise(function (resolve, reject) {
      var res = typeof __goFetch === 'function' ? __goFetch(String(url)) : null;
      if (!res || !res.ok) {
        reject(new TypeError('failed to fetch: ' + url));
        return;
      }
      resolve({
        ok: true,
        status: 200,
        url: String(url),
        headers: { get: function (h) { return h.toLowerCase() === 'content-type' ? res.mime : null; } },
        text: function () { return Promise.resolve(res.body); },
        json: function () {
          try { return Promise.resolve(JSON.parse(res.body)); }
          catch (e) { return Promise.reject(e); }
        }
      });
    });
  };

  // Timers are inert: preview scripts run to completion, nothing is scheduled.
  g.setTimeout = function () { return 0; };
  g.setInterval = function () { return 0; };
  g.clearTimeout = function () {};
  g.clearInterval = function () {};
  g.requestAnimationFrame = function () { return 0; };
  g.cancelAnimationFrame = function () {};
})();
`
