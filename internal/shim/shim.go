// Package shim emits the runtime script injected into every composed
// document. The script runs only inside the sandboxed execution context,
// never on the host.
//
// The shim carries its own read-only copy of the asset map and re-implements
// the host's path resolution (exact, normalized, basename, suffix) because
// project scripts construct references dynamically at run time. All patched
// primitives delegate to a single interception function, __resolveAsset, so
// the patch surface stays auditable and testable outside any sandbox. Every
// patch is wrapped so a failure degrades to the original behavior instead of
// breaking the document.
package shim

import "fmt"

// Options gates optional shim capabilities.
type Options struct {
	// EnableBackendMock installs an in-memory stand-in for external backend
	// services so previews of backend-assuming projects run offline.
	EnableBackendMock bool
}

// Generate emits the shim script for a serialized asset map (a JSON object
// of canonical path -> dereferenceable URL). The output is a deterministic
// function of its inputs.
func Generate(assetMapJSON string, opts Options) string {
	if assetMapJSON == "" {
		assetMapJSON = "{}"
	}
	mock := ""
	if opts.EnableBackendMock {
		mock = backendMockJS
	}
	return fmt.Sprintf(shimTemplate, assetMapJSON, mock)
}

// ScriptTag wraps the generated shim in a script element for document
// injection.
func ScriptTag(assetMapJSON string, opts Options) string {
	return "<script>\n" + Generate(assetMapJSON, opts) + "\n</script>"
}

const shimTemplate = `(function () {
  'use strict';

  var __assets = %s;
  var __paths = Object.keys(__assets).sort();

  function __normalize(ref) {
    if (typeof ref !== 'string') return '';
    ref = ref.trim().replace(/^["']|["']$/g, '');
    if (ref.slice(0, 2) === './') ref = ref.slice(2);
    if (ref.charAt(0) === '/') ref = ref.slice(1);
    return ref;
  }

  function __basename(p) {
    var i = p.lastIndexOf('/');
    return i >= 0 ? p.slice(i + 1) : p;
  }

  function __passthrough(ref) {
    return /^(https?:|data:|blob:|preview:)/i.test(ref);
  }

  // Single interception point. Every patched primitive delegates here;
  // unresolved references are returned untouched.
  function __resolveAsset(ref) {
    if (typeof ref !== 'string' || !ref || __passthrough(ref)) return ref;
    if (__assets[ref] !== undefined) return __assets[ref];
    var norm = __normalize(ref);
    if (__assets[norm] !== undefined) return __assets[norm];
    var base = __basename(norm);
    var i, p;
    for (i = 0; i < __paths.length; i++) {
      if (__basename(__paths[i]) === base) return __assets[__paths[i]];
    }
    for (i = 0; i < __paths.length; i++) {
      p = __paths[i];
      if (p.length > norm.length && p.slice(-(norm.length + 1)) === '/' + norm) return __assets[p];
      if (norm.length > p.length && norm.slice(-(p.length + 1)) === '/' + p) return __assets[p];
    }
    return ref;
  }

  function __resolved(ref) {
    var out = __resolveAsset(ref);
    return out !== ref;
  }

  var g = typeof window !== 'undefined' ? window : this;
  g.__PREVIEW_ASSETS__ = __assets;
  g.__resolveAsset = __resolveAsset;

  function __post(msg) {
    try {
      if (typeof __host !== 'undefined' && __host.postMessage) {
        __host.postMessage(JSON.stringify(msg));
        return;
      }
    } catch (e) {}
    try {
      if (typeof parent !== 'undefined' && parent !== g && parent.postMessage) {
        parent.postMessage(msg, '*');
      }
    } catch (e) {}
  }
  g.__postToHost = __post;

  function __fmt(args) {
    var out = [];
    for (var i = 0; i < args.length; i++) {
      var a = args[i];
      if (typeof a === 'string') { out.push(a); continue; }
      try { out.push(JSON.stringify(a)); } catch (e) { out.push(String(a)); }
    }
    return out.join(' ');
  }

  // Console forwarding by level. Original methods keep running. Hosts that
  // already forward console output mark it __forwarded.
  try {
    if (typeof console !== 'undefined' && !console.__forwarded) {
      ['log', 'info', 'warn', 'error', 'debug'].forEach(function (level) {
        var original = console[level];
        console[level] = function () {
          __post({ console: true, level: level, text: __fmt(arguments) });
          if (typeof original === 'function') {
            try { original.apply(console, arguments); } catch (e) {}
          }
        };
      });
    }
  } catch (e) {}

  // Uncaught exceptions and unhandled rejections.
  try {
    if (g.addEventListener) {
      g.addEventListener('error', function (e) {
        __post({
          runtimeError: true,
          payload: {
            type: 'error',
            message: e && e.message ? e.message : String(e),
            filename: e && e.filename,
            lineno: e && e.lineno,
            colno: e && e.colno,
            stack: e && e.error && e.error.stack
          }
        });
      });
      g.addEventListener('unhandledrejection', function (e) {
        var reason = e && e.reason;
        __post({
          runtimeError: true,
          payload: {
            type: 'unhandledrejection',
            message: reason && reason.message ? reason.message : String(reason),
            stack: reason && reason.stack
          }
        });
      });
    }
  } catch (e) {}

  // Inbound exec commands; results report back through the console channel.
  try {
    if (g.addEventListener) {
      g.addEventListener('message', function (e) {
        var data = e && e.data;
        if (!data || data.exec !== true || typeof data.code !== 'string') return;
        try {
          var value = (0, eval)(data.code);
          __post({ execResult: true, value: value === undefined ? 'undefined' : __fmt([value]) });
        } catch (err) {
          __post({ execResult: true, error: err && err.message ? err.message : String(err) });
        }
      });
    }
  } catch (e) {}

  function __patchSrcProperty(ctor, name) {
    try {
      var proto = ctor.prototype;
      var desc = Object.getOwnPropertyDescriptor(proto, name);
      if (!desc || !desc.set) return;
      Object.defineProperty(proto, name, {
        get: desc.get,
        set: function (v) { desc.set.call(this, __resolveAsset(v)); },
        configurable: true
      });
    } catch (e) {}
  }

  // Image and media elements, created statically or dynamically.
  try { if (g.HTMLImageElement) __patchSrcProperty(g.HTMLImageElement, 'src'); } catch (e) {}
  try { if (g.HTMLMediaElement) __patchSrcProperty(g.HTMLMediaElement, 'src'); } catch (e) {}
  try { if (g.HTMLScriptElement) __patchSrcProperty(g.HTMLScriptElement, 'src'); } catch (e) {}

  // Audio element construction: new Audio('clip.mp3').
  try {
    if (typeof g.Audio === 'function') {
      var NativeAudio = g.Audio;
      g.Audio = function (src) {
        return src === undefined ? new NativeAudio() : new NativeAudio(__resolveAsset(src));
      };
      g.Audio.prototype = NativeAudio.prototype;
    }
  } catch (e) {}

  // Image constructor: new Image().src is covered by the property patch,
  // but keep identity intact for instanceof checks.
  try {
    if (typeof g.Image === 'function' && g.HTMLImageElement) {
      var NativeImage = g.Image;
      g.Image = function (w, h) { return new NativeImage(w, h); };
      g.Image.prototype = NativeImage.prototype;
    }
  } catch (e) {}

  // Generic attribute assignment.
  try {
    if (g.Element && g.Element.prototype && g.Element.prototype.setAttribute) {
      var nativeSetAttribute = g.Element.prototype.setAttribute;
      g.Element.prototype.setAttribute = function (name, value) {
        if (name === 'src' || name === 'href' || name === 'xlink:href') {
          value = __resolveAsset(value);
        }
        return nativeSetAttribute.call(this, name, value);
      };
    }
  } catch (e) {}

  function __rewriteCSSValue(v) {
    if (typeof v !== 'string') return v;
    return v.replace(/url\(\s*(['"]?)([^'")]+)\1\s*\)/g, function (m, q, ref) {
      return 'url(' + q + __resolveAsset(ref) + q + ')';
    });
  }

  // Style-declaration assignment: el.style.backgroundImage and the generic
  // setProperty path.
  try {
    if (g.CSSStyleDeclaration && g.CSSStyleDeclaration.prototype) {
      var styleProto = g.CSSStyleDeclaration.prototype;
      var bgDesc = Object.getOwnPropertyDescriptor(styleProto, 'backgroundImage');
      if (bgDesc && bgDesc.set) {
        Object.defineProperty(styleProto, 'backgroundImage', {
          get: bgDesc.get,
          set: function (v) { bgDesc.set.call(this, __rewriteCSSValue(v)); },
          configurable: true
        });
      }
      if (styleProto.setProperty) {
        var nativeSetProperty = styleProto.setProperty;
        styleProto.setProperty = function (prop, value, priority) {
          return nativeSetProperty.call(this, prop, __rewriteCSSValue(value), priority);
        };
      }
    }
  } catch (e) {}

  // Network fetch: local references resolve to asset URLs; anything that
  // stays an absolute external URL is blocked and reported.
  try {
    if (typeof g.fetch === 'function') {
      var nativeFetch = g.fetch;
      g.fetch = function (input, init) {
        var ref = input;
        if (input && typeof input === 'object' && typeof input.url === 'string') ref = input.url;
        if (typeof ref === 'string') {
          var resolved = __resolveAsset(ref);
          if (resolved !== ref) return nativeFetch.call(g, resolved, init);
          if (/^https?:/i.test(ref)) {
            __post({ resourceBlocked: true, url: ref });
            return Promise.reject(new Error('blocked external request: ' + ref));
          }
        }
        return nativeFetch.call(g, input, init);
      };
    }
  } catch (e) {}

  // Request-object construction.
  try {
    if (typeof g.Request === 'function') {
      var NativeRequest = g.Request;
      g.Request = function (input, init) {
        if (typeof input === 'string') input = __resolveAsset(input);
        return new NativeRequest(input, init);
      };
      g.Request.prototype = NativeRequest.prototype;
    }
  } catch (e) {}

  // 2D-canvas image drawing resolves lazily-assigned sources.
  try {
    if (g.CanvasRenderingContext2D && g.CanvasRenderingContext2D.prototype.drawImage) {
      var nativeDrawImage = g.CanvasRenderingContext2D.prototype.drawImage;
      g.CanvasRenderingContext2D.prototype.drawImage = function (img) {
        try {
          if (img && typeof img.src === 'string' && __resolved(img.src)) {
            img.src = __resolveAsset(img.src);
          }
        } catch (e) {}
        return nativeDrawImage.apply(this, arguments);
      };
    }
  } catch (e) {}

  %s

  __post({ shimReady: true });
})();
`
